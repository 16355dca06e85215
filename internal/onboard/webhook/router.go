package webhook

import "github.com/aussiebroadwan/onboard/internal/onboard/domain"

// Default tags, matched exactly and case-sensitively.
const (
	DefaultOnboardTag = "active downline"
	DefaultSuspendTag = "account suspended"
)

// Router maps CRM tags to lifecycle actions.
type Router struct {
	onboard map[string]struct{}
	suspend map[string]struct{}
}

func NewRouter(onboardTags, suspendTags []string) *Router {
	r := &Router{
		onboard: make(map[string]struct{}, len(onboardTags)),
		suspend: make(map[string]struct{}, len(suspendTags)),
	}
	for _, t := range onboardTags {
		r.onboard[t] = struct{}{}
	}
	for _, t := range suspendTags {
		r.suspend[t] = struct{}{}
	}
	return r
}

// Route picks the action for a set of tags. Suspension wins over onboarding
// when a contact carries both.
func (r *Router) Route(tags []string) domain.LifecycleAction {
	action := domain.ActionIgnore
	for _, t := range tags {
		if _, ok := r.suspend[t]; ok {
			return domain.ActionSuspend
		}
		if _, ok := r.onboard[t]; ok {
			action = domain.ActionOnboard
		}
	}
	return action
}
