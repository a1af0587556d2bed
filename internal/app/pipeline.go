package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/ws"
)

// retryState tracks execution attempts for the current state entry.
type retryState struct {
	attempts int
	failedAt time.Time
	// pending is set while a failed action waits to be re-armed.
	pending bool
}

// runPipeline is the main detection loop. It owns the engine.
//
// Each tick:
//  1. re-arm a failed action once the retry delay has passed
//  2. read an observation; detection is forced outside Idle
//  3. step the engine, even without a hand, so timeouts advance
//  4. forward state changes and notifications
//  5. switch between the idle and active frame rates
//  6. execute an emitted action and stop on success
func (a *App) runPipeline(ctx context.Context) fsm.Action {
	idleFPS, activeFPS := a.settings.Camera.IdleFPS, a.settings.Camera.ActiveFPS
	retryAfter := seconds(a.settings.Action.RetryAfter)

	fps := idleFPS
	a.source.SetFPS(fps)
	ticker := time.NewTicker(frameInterval(fps))
	defer ticker.Stop()

	var (
		retry       retryState
		lastPublish time.Time
		lastErr     string
	)

	for {
		select {
		case <-ctx.Done():
			return fsm.ActionNone

		case <-a.resets:
			now := a.now()
			res := a.engine.Reset(now)
			retry = retryState{}
			log.Println("Reset requested")
			a.emit(res.Events)
			lastPublish = a.updateStatus(now, lastPublish, true)
			continue

		case <-ticker.C:
		}

		now := a.now()

		if retry.pending && now.Sub(retry.failedAt) >= retryAfter {
			retry.pending = false
			a.engine.Acknowledge(false)
		}

		obs, err := a.source.Next(now, a.engine.State() != fsm.Idle)
		if err != nil {
			// Log each distinct error once; a missing camera fails every tick.
			if msg := err.Error(); msg != lastErr {
				log.Printf("Error reading observation: %v", err)
				lastErr = msg
			}
		} else {
			lastErr = ""
		}

		res := a.engine.ProcessFrame(obs.Hand, now)
		a.emit(res.Events)

		want := idleFPS
		if obs.Active || a.engine.State() != fsm.Idle {
			want = activeFPS
		}
		if want != fps {
			fps = want
			a.source.SetFPS(fps)
			ticker.Reset(frameInterval(fps))
			debugf("switched to %d fps", fps)
		}

		if res.Action != fsm.ActionNone {
			if a.execute(ctx, res.Action, &retry) {
				a.engine.Acknowledge(true)
				a.updateStatus(now, lastPublish, true)
				return res.Action
			}
			retry.failedAt = a.now()
		}

		lastPublish = a.updateStatus(now, lastPublish, len(res.Events) > 0 || res.Action != fsm.ActionNone)
	}
}

// execute runs action once and reports whether it succeeded. After a
// failure the action is left disarmed; runPipeline re-arms it after the
// retry delay unless the attempt budget is spent.
func (a *App) execute(ctx context.Context, action fsm.Action, retry *retryState) bool {
	retry.attempts++
	log.Printf("Executing %s (attempt %d)", action, retry.attempts)

	err := a.runner.Run(ctx, action)

	result := ActionResult{Action: action.String(), Attempt: retry.attempts, Success: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	a.publish(ws.TypeAction, result)

	if err == nil {
		log.Printf("%s succeeded", action)
		return true
	}

	log.Printf("%s failed: %v", action, err)
	if retry.attempts >= a.settings.Action.MaxAttempts {
		log.Printf("Giving up on %s after %d attempts; reset to try again", action, retry.attempts)
		retry.pending = false
		return false
	}
	retry.pending = true
	return false
}

// emit forwards engine events. Notifications never block the loop.
func (a *App) emit(events []fsm.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case fsm.EventStateChanged:
			log.Printf("State %s -> %s", ev.From, ev.To)
			a.publish(ws.TypeState, StateChange{From: ev.From.String(), To: ev.To.String(), Time: ev.Time})
		case fsm.EventNotification:
			a.notifier.Notify(ev.Message)
		}
	}
}

// updateStatus refreshes the snapshot served by Status and publishes it when
// forced or when StatusInterval has passed since last. It returns the time of
// the last publication.
func (a *App) updateStatus(now, last time.Time, force bool) time.Time {
	status := a.engine.Status(now)
	a.setStatus(status)

	if !force && now.Sub(last) < StatusInterval {
		return last
	}
	a.publish(ws.TypeStatus, status)
	return now
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
