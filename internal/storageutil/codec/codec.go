// Package codec encodes records for the key-value backends that store raw
// bytes.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Encode ...
func Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

// Decode ...
func Decode(buf []byte, dst interface{}) error {
	return json.Unmarshal(buf, dst)
}

// SliceAppender decodes values into a pointer to a slice.
type SliceAppender struct {
	slice    reflect.Value
	elemType reflect.Type
}

// NewSliceAppender validates dst and resets the slice it points to.
func NewSliceAppender(dst interface{}) (*SliceAppender, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("destination must be a pointer to a slice, got %T", dst)
	}
	slice := v.Elem()
	slice.Set(reflect.MakeSlice(slice.Type(), 0, 0))
	return &SliceAppender{slice: slice, elemType: slice.Type().Elem()}, nil
}

// Append decodes buf into a new element appended to the slice.
func (a *SliceAppender) Append(buf []byte) error {
	elem := reflect.New(a.elemType)
	if err := Decode(buf, elem.Interface()); err != nil {
		return err
	}
	a.slice.Set(reflect.Append(a.slice, elem.Elem()))
	return nil
}
