package aggregator

import (
	"sort"
	"strings"
)

// Node is one labelled bucket of an aggregation tree. TotalHours always
// equals the sum of the children's TotalHours for non-leaf nodes that were
// reached by entries. Weeks is only set on monthly trees and maps week
// number to hours.
type Node struct {
	Label      string          `json:"label"`
	Level      Level           `json:"-"`
	TotalHours float64         `json:"total_hours"`
	Weeks      map[int]float64 `json:"weeks,omitempty"`
	Children   []*Node         `json:"children,omitempty"`

	index map[string]*Node
}

func newNode(label string, level Level, weekNumbers []int) *Node {
	n := &Node{Label: label, Level: level}
	if len(weekNumbers) > 0 {
		n.Weeks = make(map[int]float64, len(weekNumbers))
		for _, w := range weekNumbers {
			n.Weeks[w] = 0
		}
	}
	return n
}

// Child returns the direct child with the given label, or nil.
func (n *Node) Child(label string) *Node {
	if n == nil || n.index == nil {
		return nil
	}
	return n.index[label]
}

// Find follows a path of labels below n.
func (n *Node) Find(path ...string) *Node {
	current := n
	for _, label := range path {
		current = current.Child(label)
		if current == nil {
			return nil
		}
	}
	return current
}

// WeekHours returns the hours attributed to a week, zero for weekly trees.
func (n *Node) WeekHours(week int) float64 {
	return n.Weeks[week]
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

func (n *Node) child(label string, level Level, weekNumbers []int) *Node {
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	if c, ok := n.index[label]; ok {
		return c
	}
	c := newNode(label, level, weekNumbers)
	n.index[label] = c
	n.Children = append(n.Children, c)
	return c
}

func (n *Node) add(hours float64, week int) {
	n.TotalHours += hours
	if week > 0 && n.Weeks != nil {
		n.Weeks[week] += hours
	}
}

func (n *Node) sortChildren(order PersonOrder) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if order == PersonByHours && a.Level == LevelPerson {
			if a.TotalHours != b.TotalHours {
				return a.TotalHours > b.TotalHours
			}
			la, lb := strings.ToLower(a.Label), strings.ToLower(b.Label)
			if la != lb {
				return la < lb
			}
		}
		return a.Label < b.Label
	})
	for _, c := range n.Children {
		c.sortChildren(order)
	}
}
