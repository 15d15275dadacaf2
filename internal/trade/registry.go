package trade

// Request is a pending one-to-one trade invitation. At most one inbound
// request exists per target; a newer one silently supersedes it.
type Request struct {
	ID          string
	Requester   string
	Target      string
	CreatedTick uint64
	ExpiresTick uint64
}

// registry tracks pending requests keyed by target. Expiry is a one-shot
// deferred callback scheduled at creation; firing is idempotent because a
// consumed or superseded request no longer matches the stored entry.
type registry struct {
	byTarget map[string]*Request
	timers   []requestTimer
}

type requestTimer struct {
	dueTick   uint64
	requestID string
	target    string
}

func newRegistry() *registry {
	return &registry{byTarget: map[string]*Request{}}
}

func (r *registry) put(req *Request) {
	r.byTarget[req.Target] = req
	r.timers = append(r.timers, requestTimer{dueTick: req.ExpiresTick, requestID: req.ID, target: req.Target})
}

func (r *registry) get(target string) *Request { return r.byTarget[target] }

func (r *registry) remove(target string) { delete(r.byTarget, target) }

// due pops every timer that has fired and still refers to the stored
// request for its target. Timers for consumed requests evaporate.
func (r *registry) due(nowTick uint64) []*Request {
	if len(r.timers) == 0 {
		return nil
	}
	var expired []*Request
	keep := r.timers[:0]
	for _, t := range r.timers {
		if t.dueTick > nowTick {
			keep = append(keep, t)
			continue
		}
		cur := r.byTarget[t.target]
		if cur != nil && cur.ID == t.requestID {
			delete(r.byTarget, t.target)
			expired = append(expired, cur)
		}
	}
	r.timers = keep
	return expired
}
