package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisher(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	p := newPublisher()

	first, unsubscribe := p.subscribe(func() State { return State{InputAmount: "1", Version: 0} })
	second, _ := p.subscribe(func() State { return State{InputAmount: "1", Version: 0} })

	asserts.Equal("1", (<-first).InputAmount)

	p.publish(State{InputAmount: "2", Version: 2})
	p.publish(State{InputAmount: "stale", Version: 1})
	p.publish(State{InputAmount: "3", Version: 3})

	asserts.Equal("3", (<-first).InputAmount)
	asserts.Equal("3", (<-second).InputAmount)

	unsubscribe()
	_, ok := <-first
	asserts.False(ok)

	p.close()
	_, ok = <-second
	asserts.False(ok)
}
