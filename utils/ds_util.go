package utils

import (
	"github.com/emirpasic/gods/sets"
	"github.com/emirpasic/gods/sets/hashset"
)

// List2set 列表转换为集合
func List2set[T any](list ...T) sets.Set {
	set := hashset.New()
	for _, value := range list {
		set.Add(value)
	}
	return set
}

// Set2list 集合转换为列表，集合中类型不是T的元素会被忽略
func Set2list[T any](set sets.Set) []T {
	answer := make([]T, 0, set.Size())
	for _, value := range set.Values() {
		if v, ok := value.(T); ok {
			answer = append(answer, v)
		}
	}
	return answer
}
