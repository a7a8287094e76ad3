// Package convert 结构体转换工具
package convert

import (
	"github.com/jinzhu/copier"
)

// StructAssign copies same-named fields from src into dst and returns dst.
// StructAssign 把 src 与 dst 的相同字段名的值复制到 dst 中
func StructAssign[T any](src any, dst *T) (*T, error) {
	if err := copier.Copy(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// SliceAssign copies each element of src into a new T.
// SliceAssign 逐个复制切片元素
func SliceAssign[S any, T any](src []S) ([]T, error) {
	out := make([]T, 0, len(src))
	for i := range src {
		var dst T
		if err := copier.Copy(&dst, &src[i]); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, nil
}
