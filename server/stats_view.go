package server

import (
	"fmt"
	"html/template"

	"framestack/reinforcement"

	channerics "github.com/niceyeti/channerics/channels"
)

// EleUpdate is an element identifier and a set of operations to apply to its
// attributes/content. Updates are idempotent: applying the latest one yields
// the same view regardless of how many intervening updates were dropped.
type EleUpdate struct {
	// The id by which to find the element.
	EleId string
	// Op keys are attrib keys or 'textContent', values are the new strings to
	// which these are set. Example: ('x','123') means 'set attribute x to 123'.
	// 'textContent' is a reserved key: ('textContent','abc') means
	// 'set ele.textContent to abc'.
	Ops []Op
}

type Op struct {
	Key   string
	Value string
}

// StatsView translates training episode stats into view updates for the
// monitor page. The view is a plain table of the latest episode's numbers;
// all the interesting machinery is the push channel feeding it.
type StatsView struct {
	name    string
	updates <-chan []EleUpdate
}

func NewStatsView(
	name string,
	done <-chan struct{},
	stats <-chan reinforcement.EpisodeStats,
) *StatsView {
	view := &StatsView{
		name: template.HTMLEscapeString(name),
	}
	view.updates = channerics.Convert(done, stats, view.update)
	return view
}

// Updates returns the stream of view updates, one batch per episode.
func (view *StatsView) Updates() <-chan []EleUpdate {
	return view.updates
}

func (view *StatsView) update(stats reinforcement.EpisodeStats) []EleUpdate {
	text := func(id, value string) EleUpdate {
		return EleUpdate{
			EleId: view.name + "-" + id,
			Ops: []Op{
				{Key: "textContent", Value: value},
			},
		}
	}

	return []EleUpdate{
		text("episode", fmt.Sprintf("%d", stats.Episode)),
		text("steps", fmt.Sprintf("%d", stats.Steps)),
		text("score", fmt.Sprintf("%.1f", stats.Score)),
		text("buffer", fmt.Sprintf("%d", stats.BufferLen)),
		text("evicted", fmt.Sprintf("%d", stats.Evicted)),
	}
}

// Parse adds the view's template to the parent and returns its name for
// inclusion in the page body.
func (view *StatsView) Parse(parent *template.Template) (name string, err error) {
	name = view.name
	_, err = parent.New(name).Parse(`
		<div id="` + view.name + `">
			<table>
				<tr><td>Episode</td><td id="` + view.name + `-episode">-</td></tr>
				<tr><td>Steps</td><td id="` + view.name + `-steps">-</td></tr>
				<tr><td>Score</td><td id="` + view.name + `-score">-</td></tr>
				<tr><td>Buffer</td><td id="` + view.name + `-buffer">-</td></tr>
				<tr><td>Evicted</td><td id="` + view.name + `-evicted">-</td></tr>
			</table>
		</div>`)
	return
}
