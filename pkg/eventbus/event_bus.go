// Package eventbus is an in-process publish/subscribe bus. Handlers are
// plain functions; an event is dispatched to every subscriber whose
// parameter list matches the published arguments.
package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/costline/costline/pkg/serrors"
)

type EventBus interface {
	Publish(args ...interface{})
	Subscribe(handler interface{})
	Unsubscribe(handler interface{})
	Clear()
	SubscribersCount() int
}

// EventBusWithError is the bus for callers that need delivery feedback,
// for example a flow that must know its completion event reached someone.
type EventBusWithError interface {
	EventBus
	PublishE(args ...any) error
}

var (
	ErrNoSubscribers        = serrors.NewError("EVENTBUS_NO_SUBSCRIBERS", "no matching subscribers", "")
	ErrInvalidHandlerReturn = serrors.NewError("EVENTBUS_INVALID_HANDLER_RETURN", "invalid handler return signature", "")
)

type subscriber struct {
	handler reflect.Value
}

type publisherImpl struct {
	log *logrus.Logger

	mu          sync.RWMutex
	subscribers []subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisherImpl{log: log}
}

// MatchSignature reports whether a handler function can be invoked with the
// published arguments.
func MatchSignature(handler interface{}, args []interface{}) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func (p *publisherImpl) Publish(args ...interface{}) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	subs := make([]subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	handled := false
	for _, sub := range subs {
		if !MatchSignature(sub.handler.Interface(), args) {
			continue
		}
		p.call(sub.handler, in)
		handled = true
	}

	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", in)
	}
}

// PublishE dispatches like Publish but reports failures to the caller.
// Handlers may return nothing or a single error; anything else is surfaced
// as ErrInvalidHandlerReturn. No matching subscriber at all is
// ErrNoSubscribers.
func (p *publisherImpl) PublishE(args ...any) error {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	subs := make([]subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	handled := false
	var errs []error
	for _, sub := range subs {
		if !MatchSignature(sub.handler.Interface(), args) {
			continue
		}
		handled = true
		if err := callE(sub.handler, in); err != nil {
			errs = append(errs, err)
		}
	}

	if !handled {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

func callE(handler reflect.Value, in []reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", handler.Type().String(), r)
		}
	}()

	out := handler.Call(in)
	switch {
	case len(out) == 0:
		return nil
	case len(out) != 1:
		return fmt.Errorf("%w: handler %s returned %d values", ErrInvalidHandlerReturn, handler.Type().String(), len(out))
	}
	ret := out[0]
	if ret.Type() != reflect.TypeOf((*error)(nil)).Elem() {
		return fmt.Errorf("%w: handler %s return type is %s", ErrInvalidHandlerReturn, handler.Type().String(), ret.Type().String())
	}
	if ret.IsNil() {
		return nil
	}
	return ret.Interface().(error)
}

// call invokes one handler, containing panics so a misbehaving subscriber
// cannot take down the publisher.
func (p *publisherImpl) call(handler reflect.Value, in []reflect.Value) {
	defer func() {
		if r := recover(); r != nil {
			if p.log != nil {
				p.log.Errorf("eventbus: handler %s panicked: %v", handler.Type().String(), r)
			}
		}
	}()
	handler.Call(in)
}

func (p *publisherImpl) Subscribe(handler interface{}) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		panic("handler must be a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, subscriber{handler: reflect.ValueOf(handler)})
}

func (p *publisherImpl) Unsubscribe(handler interface{}) {
	target := reflect.ValueOf(handler)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sub := range p.subscribers {
		if sub.handler == target {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = nil
}

func (p *publisherImpl) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}
