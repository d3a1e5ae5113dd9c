package cart

// batch is the set of line ids inserted by one add operation, including its
// permutation expansion.
type batch struct {
	id      string
	lineIDs []string
}

// batchStack tracks batch boundaries so undo removes a whole add operation
// rather than a single line.
type batchStack struct {
	batches []batch
	owner   map[string]int // line id -> index into batches
}

func newBatchStack() *batchStack {
	return &batchStack{owner: make(map[string]int)}
}

func (s *batchStack) push(id string, lineIDs []string) {
	if len(lineIDs) == 0 {
		return
	}
	ids := make([]string, len(lineIDs))
	copy(ids, lineIDs)
	s.batches = append(s.batches, batch{id: id, lineIDs: ids})
	for _, lid := range ids {
		s.owner[lid] = len(s.batches) - 1
	}
}

// pop removes and returns the most recent batch.
func (s *batchStack) pop() (batch, bool) {
	if len(s.batches) == 0 {
		return batch{}, false
	}
	b := s.batches[len(s.batches)-1]
	s.batches = s.batches[:len(s.batches)-1]
	for _, lid := range b.lineIDs {
		delete(s.owner, lid)
	}
	return b, true
}

// forget drops a single line from whichever batch holds it. A batch left
// empty is removed so a later undo reaches the batch before it.
func (s *batchStack) forget(lineID string) {
	idx, ok := s.owner[lineID]
	if !ok {
		return
	}
	delete(s.owner, lineID)

	b := &s.batches[idx]
	for i, lid := range b.lineIDs {
		if lid == lineID {
			b.lineIDs = append(b.lineIDs[:i], b.lineIDs[i+1:]...)
			break
		}
	}
	if len(b.lineIDs) > 0 {
		return
	}
	s.batches = append(s.batches[:idx], s.batches[idx+1:]...)
	for i := idx; i < len(s.batches); i++ {
		for _, lid := range s.batches[i].lineIDs {
			s.owner[lid] = i
		}
	}
}

func (s *batchStack) depth() int {
	return len(s.batches)
}

func (s *batchStack) reset() {
	s.batches = nil
	s.owner = make(map[string]int)
}
