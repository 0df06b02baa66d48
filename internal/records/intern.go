package records

// maxPoolSize caps the pool. Past it, names are returned as given.
const maxPoolSize = 100000

// namePool deduplicates plugin names read from reference files, where one
// plugin owns thousands of consecutive lines. It is filled while the
// resolver loads and is not safe for concurrent use.
type namePool map[string]string

func newNamePool() namePool {
	return make(namePool, 256)
}

// intern returns the pooled copy of s, storing s if it is new.
func (p namePool) intern(s string) string {
	if pooled, ok := p[s]; ok {
		return pooled
	}
	if len(p) >= maxPoolSize {
		return s
	}
	p[s] = s
	return s
}
