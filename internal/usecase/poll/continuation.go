package poll

import "feedwatch/internal/domain/entity"

// Pagination decisions, also used as metric label values.
const (
	DecisionContinue    = "continue"
	DecisionNoNewEvents = "no_new_events"
	DecisionNoNextPage  = "no_next_page"
	DecisionCrossHost   = "cross_host"
	DecisionPageLimit   = "page_limit"
)

// ShouldContinue decides whether the page after page should be fetched.
// All of the following must hold: the page produced at least one new event,
// it carries a next-page locator, the locator is on the host of currentURL,
// and pageNumber is below MaxPageNumber. The second result names the first
// condition that failed, or DecisionContinue.
//
// A locator without a host (relative path or opaque token) never matches.
func ShouldContinue(newEvents int, page *entity.FeedPage, currentURL string, pageNumber int) (bool, string) {
	switch {
	case newEvents <= 0:
		return false, DecisionNoNewEvents
	case !page.HasNext():
		return false, DecisionNoNextPage
	case !entity.SameHost(page.NextPage, currentURL):
		return false, DecisionCrossHost
	case pageNumber >= MaxPageNumber:
		return false, DecisionPageLimit
	}
	return true, DecisionContinue
}
