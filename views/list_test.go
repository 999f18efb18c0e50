package views

import (
	"reflect"
	"testing"
)

type item struct {
	id   int64
	name string
}

func (i item) Key() int64 {
	return i.id
}

func TestList(t *testing.T) {
	testCases := []struct {
		name      string
		apply     func(l *List[item])
		expectIDs []int64
		expectLen int
	}{
		{
			name:      "Reset keeps order",
			apply:     func(l *List[item]) { l.Reset([]item{{3, "c"}, {1, "a"}, {2, "b"}}) },
			expectIDs: []int64{3, 1, 2},
			expectLen: 3,
		}, {
			name: "Put replaces in place",
			apply: func(l *List[item]) {
				l.Reset([]item{{1, "a"}, {2, "b"}})
				l.Put(item{1, "a2"})
			},
			expectIDs: []int64{1, 2},
			expectLen: 2,
		}, {
			name: "Remove unknown is ignored",
			apply: func(l *List[item]) {
				l.Put(item{5, "e"})
				l.Remove(9)
			},
			expectIDs: []int64{5},
			expectLen: 1,
		}, {
			name: "Remove",
			apply: func(l *List[item]) {
				l.Reset([]item{{1, "a"}, {2, "b"}, {3, "c"}})
				l.Remove(2)
			},
			expectIDs: []int64{1, 3},
			expectLen: 2,
		}, {
			name: "Reset drops previous content",
			apply: func(l *List[item]) {
				l.Reset([]item{{1, "a"}})
				l.Reset(nil)
			},
			expectIDs: []int64{},
			expectLen: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewList[item]()
			tc.apply(l)
			ids := []int64{}
			for _, it := range l.Items() {
				ids = append(ids, it.id)
			}
			if !reflect.DeepEqual(ids, tc.expectIDs) {
				t.Errorf("Expected %v, got %v", tc.expectIDs, ids)
			}
			if l.Len() != tc.expectLen {
				t.Errorf("Expected len %d, got %d", tc.expectLen, l.Len())
			}
		})
	}
}

func TestListGetAndOnChange(t *testing.T) {
	l := NewList[item]()
	changes := 0
	l.OnChange = func(int) { changes++ }

	l.Put(item{1, "a"})
	l.Put(item{1, "b"})
	l.Remove(1)
	l.Remove(1)

	if changes != 3 {
		t.Errorf("Expected 3 changes, got %d", changes)
	}
	if _, ok := l.Get(1); ok {
		t.Errorf("Expected item 1 to be gone")
	}
	l.Put(item{2, "x"})
	if got, ok := l.Get(2); !ok || got.name != "x" {
		t.Errorf("Expected item 2 named x, got %+v", got)
	}
}
