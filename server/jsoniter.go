// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
)

// JSON marshals messages. Make sure encoders are registered first.
var JSON = func() jsoniter.API {
	neverEmpty := func(pointer unsafe.Pointer) bool { return false }

	jsoniter.RegisterTypeEncoderFunc(reflect.TypeOf(Message{}).String(), encodeMessage, neverEmpty)
	jsoniter.RegisterTypeDecoderFunc(reflect.TypeOf(Message{}).String(), decodeMessage)

	return jsoniter.Config{
		IndentionStep:                 0,
		MarshalFloatWith6Digits:       true,
		EscapeHTML:                    false,
		SortMapKeys:                   true,
		UseNumber:                     false,
		DisallowUnknownFields:         false,
		TagKey:                        "json",
		OnlyTaggedField:               false,
		ValidateJsonRawMessage:        false,
		ObjectFieldMustBeSimpleString: true,
		CaseSensitive:                 true,
	}.Froze()
}()

func encodeMessage(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	message := (*Message)(ptr)
	stream.WriteVal(message.messageJSON())
}

// Buffers large enough to hold most inbounds
var decodeMessagePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

// decodeMessage reads the type of a message before its data, which may come first.
func decodeMessage(ptr unsafe.Pointer, topLevelIter *jsoniter.Iterator) {
	bufPtr := decodeMessagePool.Get().(*[]byte)

	// Read bytes so can read twice
	messageBytes := topLevelIter.SkipAndAppendBytes(*bufPtr)

	pool := topLevelIter.Pool()
	iter := pool.BorrowIterator(messageBytes)
	defer pool.ReturnIterator(iter)

	// Pointer to a new inbound
	var in interface{}
	var hasData bool

	// Second pass only if data came before type
	for pass := 0; pass < 2; pass++ {
		iter.ResetBytes(messageBytes)
		iter.ReadObjectCB(func(i *jsoniter.Iterator, field string) bool {
			switch field {
			case "type":
				if in != nil {
					i.Skip()
					return true
				}
				typeBytes := i.ReadStringAsSlice()
				inboundType, ok := inboundMessageTypes[messageType(typeBytes)]
				if !ok {
					invalid := &InvalidInbound{messageType: messageType(typeBytes)}
					in = invalid
					return true
				}
				in = reflect.New(inboundType).Interface()
			case "data":
				if in == nil {
					hasData = true
					i.Skip()
					return true
				}
				if _, invalid := in.(*InvalidInbound); invalid {
					i.Skip()
					return true
				}
				i.ReadVal(in)
				hasData = false
				return false
			default:
				i.Skip()
			}
			return true
		})

		if err := iter.Error; err != nil {
			topLevelIter.Error = err
			return
		}

		if in == nil {
			topLevelIter.Error = errors.New("no inbound message type")
			return
		}
		if !hasData {
			break
		}
	}

	*bufPtr = messageBytes[:0]
	decodeMessagePool.Put(bufPtr)

	message := (*Message)(ptr)
	message.Data = reflect.Indirect(reflect.ValueOf(in)).Interface()
}
