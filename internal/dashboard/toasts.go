package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/openkcm/session-client/internal/notify"
)

type toast struct {
	msg notify.Message
	at  time.Time
}

// toasts buffers hub messages until the next page render or until their
// life runs out, whichever comes first.
type toasts struct {
	cache *cache.Cache
}

func newToasts() *toasts {
	return &toasts{cache: cache.New(cache.NoExpiration, time.Minute)}
}

func (t *toasts) receive(_ context.Context, msg notify.Message) {
	life := msg.Life
	if life <= 0 {
		life = cache.NoExpiration
	}
	t.cache.Set(uuid.NewString(), toast{msg: msg, at: time.Now()}, life)
}

// drain returns the live messages in arrival order and forgets them.
func (t *toasts) drain() []notify.Message {
	items := t.cache.Items()

	pending := make([]toast, 0, len(items))
	for key, item := range items {
		t.cache.Delete(key)
		if tt, ok := item.Object.(toast); ok {
			pending = append(pending, tt)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].at.Before(pending[j].at) })

	msgs := make([]notify.Message, 0, len(pending))
	for _, tt := range pending {
		msgs = append(msgs, tt.msg)
	}
	return msgs
}
