package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
)

// ErrElementGone is returned when a captured node has no counterpart in the
// live page.
var ErrElementGone = errors.New("element not found in page")

const bindingName = "__pagelensNotify"

// observerBridge is installed into every document of the page. Each watch
// owns one observer of each kind and reports through the exposed binding.
const observerBridge = `(() => {
  if (window.__pagelensWatch) return;
  const watches = new Map();
  const describe = n => n.nodeType === 1 ? n.nodeName.toLowerCase() : n.nodeName;
  const send = (id, rec) => { try { window.` + bindingName + `(id, rec); } catch (e) {} };
  window.__pagelensCaps = () => ({
    mutation: typeof MutationObserver === "function",
    visibility: typeof IntersectionObserver === "function",
    resize: typeof ResizeObserver === "function",
  });
  window.__pagelensWatch = (id, xpath) => {
    const el = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
    if (!el) return false;
    const obs = [];
    if (typeof MutationObserver === "function") {
      const mo = new MutationObserver(list => {
        for (const m of list) {
          send(id, {
            type: m.type,
            attributeName: m.attributeName || "",
            oldValue: m.oldValue || "",
            added: Array.from(m.addedNodes, describe),
            removed: Array.from(m.removedNodes, describe),
          });
        }
      });
      mo.observe(el, { attributes: true, attributeOldValue: true, childList: true, characterData: true, characterDataOldValue: true, subtree: true });
      obs.push(mo);
    }
    if (typeof IntersectionObserver === "function") {
      const io = new IntersectionObserver(entries => {
        for (const e of entries) send(id, { type: "visibility", visible: e.isIntersecting, ratio: e.intersectionRatio });
      });
      io.observe(el);
      obs.push(io);
    }
    if (typeof ResizeObserver === "function") {
      const ro = new ResizeObserver(() => {
        const r = el.getBoundingClientRect();
        send(id, { type: "resize", x: r.x, y: r.y, width: r.width, height: r.height });
      });
      ro.observe(el);
      obs.push(ro);
    }
    watches.set(id, obs);
    return true;
  };
  window.__pagelensUnwatch = id => {
    for (const o of watches.get(id) || []) o.disconnect();
    watches.delete(id);
  };
})();`

// Observer implements session.Observer for a live page.
type Observer struct {
	page *Page
	now  func() time.Time

	capsOnce sync.Once
	caps     session.Capabilities

	mu      sync.Mutex
	next    int
	watches map[string]func(inspector.Observation)
}

var _ session.Observer = (*Observer)(nil)

func newObserver(p *Page) *Observer {
	return &Observer{page: p, now: time.Now, watches: make(map[string]func(inspector.Observation))}
}

// Capabilities probes the page once for the observer APIs.
func (o *Observer) Capabilities() session.Capabilities {
	o.capsOnce.Do(func() {
		v, err := o.page.evaluate(context.Background(), `() => window.__pagelensCaps ? window.__pagelensCaps() : null`)
		if err != nil {
			o.page.logger.Warn("observer capability probe failed", zap.Error(err))
			return
		}
		m, _ := v.(map[string]interface{})
		o.caps.Mutation, _ = m["mutation"].(bool)
		o.caps.Visibility, _ = m["visibility"].(bool)
		o.caps.Resize, _ = m["resize"].(bool)
	})
	return o.caps
}

// Observe starts watching n's counterpart in the page.
func (o *Observer) Observe(n *html.Node, notify func(inspector.Observation)) (session.Subscription, error) {
	xpath := selector.XPath(n)
	if xpath == "" {
		return nil, ErrElementGone
	}

	o.mu.Lock()
	o.next++
	id := strconv.Itoa(o.next)
	o.watches[id] = notify
	o.mu.Unlock()

	v, err := o.page.evaluate(context.Background(), `([id, xpath]) => window.__pagelensWatch(id, xpath)`, []interface{}{id, xpath})
	if found, _ := v.(bool); err != nil || !found {
		o.forget(id)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", xpath, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrElementGone, xpath)
	}

	return session.SubscriptionFunc(func() {
		if o.forget(id) {
			_, _ = o.page.evaluate(context.Background(), `id => window.__pagelensUnwatch && window.__pagelensUnwatch(id)`, id)
		}
	}), nil
}

func (o *Observer) forget(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.watches[id]
	delete(o.watches, id)
	return ok
}

func (o *Observer) cancelAll() {
	o.mu.Lock()
	o.watches = make(map[string]func(inspector.Observation))
	o.mu.Unlock()
}

// dispatch receives records from the page binding.
func (o *Observer) dispatch(args ...interface{}) interface{} {
	if len(args) != 2 {
		return nil
	}
	id, _ := args[0].(string)
	rec, ok := args[1].(map[string]interface{})
	if !ok {
		return nil
	}

	o.mu.Lock()
	notify := o.watches[id]
	o.mu.Unlock()
	if notify == nil {
		return nil
	}
	if obs, ok := observationFrom(rec, o.now()); ok {
		notify(obs)
	}
	return nil
}

// observationFrom converts a bridge record.
func observationFrom(rec map[string]interface{}, at time.Time) (inspector.Observation, bool) {
	kind, _ := rec["type"].(string)
	obs := inspector.Observation{Kind: inspector.ObservationKind(kind), Timestamp: at}
	switch obs.Kind {
	case inspector.ObservedAttributes, inspector.ObservedCharacterData:
		obs.AttributeName, _ = rec["attributeName"].(string)
		obs.OldValue, _ = rec["oldValue"].(string)
	case inspector.ObservedChildList:
		obs.AddedNodes = toStrings(rec["added"])
		obs.RemovedNodes = toStrings(rec["removed"])
	case inspector.ObservedVisibility:
		visible, _ := rec["visible"].(bool)
		obs.Visible = &visible
		obs.Ratio = toFloat(rec["ratio"])
	case inspector.ObservedResize:
		g := geometryFrom(rec)
		obs.Geometry = &g
	default:
		return inspector.Observation{}, false
	}
	return obs, true
}
