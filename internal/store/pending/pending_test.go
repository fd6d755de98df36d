package pending

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuplicateDeliveryCollapsesToOneEntry(t *testing.T) {
	q := NewQueue(nil)

	for i := 0; i < 5; i++ {
		q.Add(Action{ActionID: "a1", Title: "Send email"})
	}

	assert.Equal(t, 1, q.Count())
	action, ok := q.Get("a1")
	assert.True(t, ok)
	assert.Equal(t, "Send email", action.Title)
}

func TestDuplicateKeepsFirstPayload(t *testing.T) {
	q := NewQueue(nil)
	q.Add(Action{ActionID: "a1", Title: "Send email"})
	q.Add(Action{ActionID: "a1", Title: "Send email (edited)"})

	action, _ := q.Get("a1")
	assert.Equal(t, "Send email", action.Title)
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	q := NewQueue(nil)
	q.Remove("missing")
	assert.Equal(t, 0, q.Count())
}

func TestRemoveBatch(t *testing.T) {
	q := NewQueue(nil)
	for i := 0; i < 4; i++ {
		q.Add(Action{ActionID: fmt.Sprintf("a%d", i)})
	}

	q.RemoveBatch([]string{"a0", "a2", "missing"})

	assert.Equal(t, 2, q.Count())
	_, ok := q.Get("a1")
	assert.True(t, ok)
	_, ok = q.Get("a2")
	assert.False(t, ok)
}

func TestListOrdersOldestFirst(t *testing.T) {
	q := NewQueue(nil)
	base := time.Now()
	q.Add(Action{ActionID: "newer", ReceivedAt: base.Add(time.Minute)})
	q.Add(Action{ActionID: "older", ReceivedAt: base})

	list := q.List()
	assert.Equal(t, []string{"older", "newer"}, []string{list[0].ActionID, list[1].ActionID})
}

func TestAddWithoutIDIsIgnored(t *testing.T) {
	q := NewQueue(nil)
	q.Add(Action{Title: "orphan"})
	assert.Equal(t, 0, q.Count())
}
