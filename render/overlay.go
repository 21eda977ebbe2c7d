package render

import (
	"time"

	"github.com/jetd7/snapembed/backoff"
	"github.com/jetd7/snapembed/log"
	"github.com/jetd7/snapembed/page"
)

// placeOverlay walks the anchor search order (light control, shadow control,
// bounding box), retrying each anchor with exponential backoff before
// falling through to the next. The widget paints asynchronously after mount,
// so the first attempts routinely race the paint.
func (o *Orchestrator) placeOverlay(container page.Container, message string) {
	o.tryAnchor(container, message, 0, 0)
}

func (o *Orchestrator) tryAnchor(container page.Container, message string, anchorIndex, attempt int) {
	if anchorIndex >= len(page.Anchors) {
		// Every anchor exhausted. The gate stays down rather than blocking
		// the widget with a misplaced overlay.
		o.logger.Log(o.ctxNow(), log.LevelWarn, "overlay placement failed",
			log.String("owner", o.cfg.Owner))

		return
	}

	anchor := page.Anchors[anchorIndex]
	if container.TryPlaceOverlay(anchor, message) {
		return
	}

	policy := backoff.Policy{
		Base:        o.cfg.OverlayRetryBase,
		Cap:         10 * o.cfg.OverlayRetryBase,
		MaxAttempts: o.cfg.OverlayRetryCount,
	}

	if policy.Exhausted(attempt + 1) {
		o.tryAnchor(container, message, anchorIndex+1, 0)

		return
	}

	delay := policy.Delay(attempt)
	if delay <= 0 {
		delay = time.Millisecond
	}

	o.sched.After(o.cfg.Owner, delay, func() {
		o.tryAnchor(container, message, anchorIndex, attempt+1)
	})
}
