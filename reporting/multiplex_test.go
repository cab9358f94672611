package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// recordingHandle remembers every delivered event and finalize call.
type recordingHandle struct {
	events    []event.Kind
	finalized int
}

func (h *recordingHandle) Event(kind event.Kind, scopes []string, logs event.Logs) {
	h.events = append(h.events, kind)
}

func (h *recordingHandle) Finalize(res engine.UnitResult) {
	h.finalized++
}

func TestCombineEmpty(t *testing.T) {
	assert.Nil(t, Combine(nil))
	assert.Nil(t, Combine([]engine.EventFn{}))
}

func TestCombineSingle(t *testing.T) {
	var got []string
	fn := func(kind event.Kind, scopes []string, logs event.Logs) {
		got = append(got, event.JoinScopes(scopes))
	}

	combined := Combine([]engine.EventFn{fn})
	require.NotNil(t, combined)
	combined(event.Success, []string{"a", "b"}, nil)
	assert.Equal(t, []string{"a/b"}, got)
}

func TestCombineForwardsInOrder(t *testing.T) {
	var order []int
	mk := func(id int) engine.EventFn {
		return func(kind event.Kind, scopes []string, logs event.Logs) {
			order = append(order, id)
		}
	}

	combined := Combine([]engine.EventFn{mk(0), mk(1), mk(2)})
	combined(event.Failure, nil, nil)
	combined(event.Failure, nil, nil)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, order)
}

func TestFanoutRespectsMasks(t *testing.T) {
	all := &recordingHandle{}
	failing := &recordingHandle{}
	handles := []TestHandle{all, failing}
	masks := []event.Mask{
		event.NewMask(true, true, true, true, true),
		event.FailuresOnly(),
	}

	fanout := Fanout(handles, masks)
	fanout.Emit(event.Success, nil, nil)
	fanout.Emit(event.Failure, nil, nil)
	fanout.Emit(event.Timing, nil, nil)
	fanout.Emit(event.Exception, nil, nil)

	assert.Equal(t, []event.Kind{event.Success, event.Failure, event.Timing, event.Exception}, all.events)
	assert.Equal(t, []event.Kind{event.Failure, event.Exception}, failing.events)
}

func TestFanoutTracebackNeverMasked(t *testing.T) {
	h := &recordingHandle{}
	fanout := Fanout([]TestHandle{h}, []event.Mask{{}})

	// The empty mask rejects every maskable kind.
	fanout.Emit(event.Success, nil, nil)
	fanout.Emit(event.Failure, nil, nil)
	fanout.Emit(event.Traceback, nil, nil)

	assert.Equal(t, []event.Kind{event.Traceback}, h.events)
}

func TestFanoutUnwantedKindIsNil(t *testing.T) {
	h := &recordingHandle{}
	fanout := Fanout([]TestHandle{h}, []event.Mask{event.FailuresOnly()})

	assert.Nil(t, fanout[event.Success])
	assert.Nil(t, fanout[event.Timing])
	assert.Nil(t, fanout[event.Skipped])
	assert.NotNil(t, fanout[event.Failure])
	assert.NotNil(t, fanout[event.Exception])
	assert.NotNil(t, fanout[event.Traceback])
}
