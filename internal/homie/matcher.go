package homie

// Match resolves an inbound topic to the property it addresses. idx is the
// element index for array properties and NotArray otherwise. The array
// count is asked for afresh, so an index is checked against the current
// number of elements.
func (d *Device) Match(topic []byte) (node *Node, prop *Property, idx int, ok bool) {
	rest, ok := matchLevel(topic, TopicRoot, '/')
	if !ok {
		return nil, nil, 0, false
	}
	rest, ok = matchLevel(rest, d.ID, '/')
	if !ok {
		return nil, nil, 0, false
	}

	for _, n := range d.Nodes {
		propIn, ok := matchLevel(rest, n.ID, '/')
		if !ok {
			continue
		}
		for _, p := range n.Properties {
			if count := p.arrayCount(); count >= 0 {
				idxIn, ok := matchLevel(propIn, p.ID, '_')
				if !ok {
					continue
				}
				i, ok := parseIndex(idxIn)
				if !ok || i >= count {
					continue
				}
				return n, p, i, true
			}
			if len(propIn) == len(p.ID) && string(propIn) == p.ID {
				return n, p, NotArray, true
			}
		}
		return nil, nil, 0, false
	}
	return nil, nil, 0, false
}

// Deliver routes an inbound message to the input capability of the
// property it addresses. Unknown topics and properties without input are
// ignored. It reports whether an input capability was called.
func (s *Session) Deliver(topic, payload []byte, retained bool) bool {
	_, prop, idx, ok := s.device.Match(topic)
	if !ok {
		return false
	}
	in, ok := prop.Handler.(Inputter)
	if !ok {
		return false
	}
	in.Input(idx, payload, retained)
	return true
}

// matchLevel strips prefix followed by sep from data.
func matchLevel(data []byte, prefix string, sep byte) ([]byte, bool) {
	if len(data) < len(prefix)+1 || string(data[:len(prefix)]) != prefix || data[len(prefix)] != sep {
		return nil, false
	}
	return data[len(prefix)+1:], true
}

// parseIndex accepts a non-empty run of decimal digits and nothing else.
func parseIndex(b []byte) (int, bool) {
	if len(b) == 0 || len(b) > 4 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
