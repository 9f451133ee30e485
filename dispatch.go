package ensemble

// dispatchLoop is the single goroutine that pulls replies from the
// transport and routes them into the completion registry or the watch
// registry. It is the only goroutine that ever calls Receive, so
// ordering of replies to requests submitted from a single application
// goroutine is preserved end to end.
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	buf := make([]Reply, e.opts.ReceiveBatch)
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		n, err := e.transport.Receive(e.ctx, buf)
		if err != nil {
			if e.ctx.Err() != nil {
				return
			}
			e.opts.Logger.Errorf("ensemble: transport receive failed: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			e.handleReply(buf[i])
		}
	}
}

func (e *Engine) handleReply(r Reply) {
	if r.UnsolicitedEvent != nil {
		delivered := e.watches.dispatch(r.EventPath, r.EventKind, *r.UnsolicitedEvent)
		for i := 0; i < delivered; i++ {
			e.opts.Metrics.WatchEventDelivered(r.EventKind)
		}
		return
	}

	switch r.Tag {
	case ReplySessionEvent:
		// Transport-driven state changes arrive via OnLifecycle, not
		// through Receive; a ReplySessionEvent reply is reserved for
		// transports that prefer to multiplex it through the same
		// channel. Route it the same way.
		e.onLifecycle(r.SessionState)

	case ReplyError:
		e.opts.Metrics.ReplyDispatched("error", true)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{err: r.Err})

	case ReplyGetResult:
		e.opts.Metrics.ReplyDispatched("get", false)
		if r.Watch {
			handle := e.watches.install(r.WatchPath, r.WatchKind)
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: WatchDataResult{
				Data: r.GetResult.Data, Stat: r.GetResult.Stat, Watch: handle,
			}})
		} else {
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.GetResult})
		}

	case ReplyChildrenResult:
		e.opts.Metrics.ReplyDispatched("children", false)
		if r.Watch {
			handle := e.watches.install(r.WatchPath, WatchChildren)
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: WatchChildrenResult{
				Children: r.ChildrenResult.Children, Stat: r.ChildrenResult.Stat, Watch: handle,
			}})
		} else {
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.ChildrenResult})
		}

	case ReplyExistsResult:
		e.opts.Metrics.ReplyDispatched("exists", false)
		if r.Watch {
			handle := e.watches.install(r.WatchPath, WatchExists)
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: WatchExistsResult{
				Present: r.ExistsResult.Present, Stat: r.ExistsResult.Stat, Watch: handle,
			}})
		} else {
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.ExistsResult})
		}

	case ReplyACLResult:
		e.opts.Metrics.ReplyDispatched("get_acl", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.ACLResult})

	case ReplyCreateResult:
		e.opts.Metrics.ReplyDispatched("create", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.CreateResult})

	case ReplySetResult:
		e.opts.Metrics.ReplyDispatched("set", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.SetResult})

	case ReplyEraseResult:
		e.opts.Metrics.ReplyDispatched("erase", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: EraseResult{}})

	case ReplySetACLResult:
		e.opts.Metrics.ReplyDispatched("set_acl", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: SetACLResult{}})

	case ReplyFenceResult:
		e.opts.Metrics.ReplyDispatched("fence", false)
		e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: struct{}{}})

	case ReplyMultiResult:
		failed := r.MultiResult == nil
		e.opts.Metrics.ReplyDispatched("multi", failed)
		if failed {
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{err: r.Err})
		} else {
			e.completions.resolve(correlationID(r.Tracker), completionOutcome{value: *r.MultiResult})
		}
	}
}
