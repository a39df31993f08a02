package call

import "github.com/pion/webrtc/v4"

// candidateQueue buffers remote ICE candidates that arrive before the remote
// description is applied. Strict FIFO: candidates must reach the media engine
// in the exact order they were received.
type candidateQueue struct {
	items []webrtc.ICECandidateInit
}

func (q *candidateQueue) push(c webrtc.ICECandidateInit) {
	q.items = append(q.items, c)
}

// drain returns the queued candidates in arrival order and empties the queue.
func (q *candidateQueue) drain() []webrtc.ICECandidateInit {
	items := q.items
	q.items = nil
	return items
}

func (q *candidateQueue) clear() {
	q.items = nil
}

func (q *candidateQueue) len() int {
	return len(q.items)
}
