package events

import "context"

// Bus decouples the pipeline from whatever renders it. The core never
// blocks on a UI thread: it publishes status and emits confirmation
// requests, then waits on the reply channel.
type Bus struct {
	confirms chan *ConfirmRequest
	status   chan Status
}

// Status is a point-in-time progress report for the UI to render.
type Status struct {
	Stage   string
	Percent int
	Text    string
}

// ConfirmRequest asks the presentation layer a yes/no question.
type ConfirmRequest struct {
	Title   string
	Message string

	reply chan bool
}

// Respond delivers the user's answer. Calling it more than once is a
// programming error on the presentation side.
func (r *ConfirmRequest) Respond(accepted bool) {
	r.reply <- accepted
	close(r.reply)
}

func NewBus() *Bus {
	return &Bus{
		confirms: make(chan *ConfirmRequest, 1),
		status:   make(chan Status, 64),
	}
}

// Publish emits a status event, dropping it when nobody is draining
// the channel; stale progress is worthless.
func (b *Bus) Publish(st Status) {
	select {
	case b.status <- st:
	default:
	}
}

func (b *Bus) StatusEvents() <-chan Status {
	return b.status
}

// Confirm emits a confirmation request and waits for the answer or for
// ctx to end, whichever comes first.
func (b *Bus) Confirm(ctx context.Context, title, message string) (bool, error) {
	req := &ConfirmRequest{
		Title:   title,
		Message: message,
		reply:   make(chan bool, 1),
	}

	select {
	case b.confirms <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case answer := <-req.reply:
		return answer, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (b *Bus) Requests() <-chan *ConfirmRequest {
	return b.confirms
}
