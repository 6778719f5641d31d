package core

import (
	"fmt"
	"reflect"

	"github.com/go-drift/retain/pkg/errors"
)

// borrowFlag tracks access to a node's state: 0 when free, n > 0 while n
// shared guards are live, -1 while an exclusive guard is live.
type borrowFlag int

const exclusive borrowFlag = -1

func (t *Tree) borrowShared(n *node, op string) {
	if n.borrow == exclusive {
		t.fatal(op, errors.KindBorrow, errors.ErrBorrowConflict, n.id, "state is exclusively borrowed")
	}
	n.borrow++
}

func (t *Tree) borrowExclusive(n *node, op string) {
	switch {
	case n.borrow == exclusive:
		t.fatal(op, errors.KindBorrow, errors.ErrBorrowConflict, n.id, "state is exclusively borrowed")
	case n.borrow > 0:
		t.fatal(op, errors.KindBorrow, errors.ErrBorrowConflict, n.id,
			fmt.Sprintf("state has %d shared borrows", n.borrow))
	}
	n.borrow = exclusive
}

func (n *node) releaseShared() {
	if n.borrow > 0 {
		n.borrow--
	}
}

func (n *node) releaseExclusive() {
	if n.borrow == exclusive {
		n.borrow = 0
	}
}

// downcast returns n's state as *S, treating any other type as an
// invariant violation.
func downcast[S any](t *Tree, n *node, op string) *S {
	value, ok := n.state.(*S)
	if !ok {
		t.fatal(op, errors.KindStateType, errors.ErrStateType, n.id,
			fmt.Sprintf("want %v, node holds %v", reflect.TypeFor[*S](), n.stateType))
	}
	return value
}
