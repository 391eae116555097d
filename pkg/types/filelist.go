package types

import (
	"sort"
	"strings"
)

type PathList []string

func (l PathList) Len() int {
	return len(l)
}

func (l PathList) Less(i, j int) bool {
	return l[i] < l[j]
}

func (l PathList) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
}

func (l PathList) Sort() {
	sort.Sort(l)
}

/*
Diff two sorted path lists, return their difference
list NEW: only R has.
list OLD: only L has.
Duplicates are compared pairwise, so both lists are expected to be sets.
*/
func (l PathList) Diff(r PathList) (newItems []int, oldItems []int) {
	newItems = make([]int, 0)
	oldItems = make([]int, 0)
	i := 0 // index of l
	j := 0 // index of r

	for i < len(l) && j < len(r) {
		// If 1, L doesn't have r[j]
		// If 0, both have it
		// If -1, R doesn't have l[i]
		switch strings.Compare(l[i], r[j]) {
		case 0:
			i++
			j++
		case 1:
			newItems = append(newItems, j)
			j++
		case -1:
			oldItems = append(oldItems, i)
			i++
		}
	}

	// Handle remains
	for ; i < len(l); i++ {
		oldItems = append(oldItems, i)
	}
	for ; j < len(r); j++ {
		newItems = append(newItems, j)
	}

	return
}

// Subtract returns the paths of r that are missing from l.
func (l PathList) Subtract(r PathList) PathList {
	newItems, _ := l.Diff(r)
	out := make(PathList, 0, len(newItems))
	for _, idx := range newItems {
		out = append(out, r[idx])
	}
	return out
}
