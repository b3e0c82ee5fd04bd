package rod

// Default render budget of one browser.
const (
	DefaultMaxRenders     = 50
	DefaultRendersPerHost = 25
)

// RenderBudget limits how many pages one browser renders before it is
// replaced. Reader pages are image heavy and Chrome keeps per-site state
// (caches, service workers) alive between renders, so a browser is retired
// once it has rendered Total pages, or PerHost pages of a single site.
// Zero fields disable the matching limit.
type RenderBudget struct {
	Total   int
	PerHost int
}

// DefaultRenderBudget returns the budget used when none is configured.
func DefaultRenderBudget() RenderBudget {
	return RenderBudget{Total: DefaultMaxRenders, PerHost: DefaultRendersPerHost}
}

// RenderLedger counts the renders of one browser against a RenderBudget.
// It is not safe for concurrent use.
type RenderLedger struct {
	budget RenderBudget
	total  int
	hosts  map[string]int
}

// NewRenderLedger returns an empty ledger for budget.
func NewRenderLedger(budget RenderBudget) *RenderLedger {
	return &RenderLedger{
		budget: budget,
		hosts:  make(map[string]int),
	}
}

// Record counts one render of a page on host and reports whether the
// budget is now spent.
func (l *RenderLedger) Record(host string) bool {
	l.total++
	l.hosts[host]++
	return l.Spent()
}

// Spent reports whether any limit of the budget has been reached.
func (l *RenderLedger) Spent() bool {
	if l.budget.Total > 0 && l.total >= l.budget.Total {
		return true
	}
	if l.budget.PerHost > 0 {
		for _, n := range l.hosts {
			if n >= l.budget.PerHost {
				return true
			}
		}
	}
	return false
}

// Renders returns the number of renders recorded for host, or for every
// host when host is empty.
func (l *RenderLedger) Renders(host string) int {
	if host == "" {
		return l.total
	}
	return l.hosts[host]
}
