// Package notify carries one-shot user-facing messages such as
// "Mug added to cart".
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Log writes notifications to a logrus logger.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Success(msg string) { l.Logger.WithField("notification", "success").Info(msg) }

func (l Log) Error(msg string) { l.Logger.WithField("notification", "error").Error(msg) }

// Printer writes one line per notification, for terminals.
type Printer struct {
	W io.Writer
}

func (p Printer) Success(msg string) { fmt.Fprintf(p.W, "✔ %s\n", msg) }

func (p Printer) Error(msg string) { fmt.Fprintf(p.W, "✘ %s\n", msg) }

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Notification struct {
	Kind    Kind
	Message string
}

// Recorder keeps notifications in memory, for tests and for callers that
// render them later.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(msg string) { r.add(KindSuccess, msg) }

func (r *Recorder) Error(msg string) { r.add(KindError, msg) }

func (r *Recorder) add(kind Kind, msg string) {
	r.mu.Lock()
	r.items = append(r.items, Notification{Kind: kind, Message: msg})
	r.mu.Unlock()
}

// Drain returns and forgets everything recorded so far.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Kind == KindError {
			out = append(out, n.Message)
		}
	}
	return out
}
