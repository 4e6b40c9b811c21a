package instance

// Split partitions instances into n contiguous groups of near-equal size.
// The first len(instances) % n groups carry one extra element. Contiguity
// matters: datasets arrive grouped by repository, so contiguous groups keep
// a repository's checkouts on a single worker.
func Split(instances []Instance, n int) [][]Instance {
	if n < 1 {
		n = 1
	}

	avg := len(instances) / n
	rem := len(instances) % n

	groups := make([][]Instance, 0, n)
	start := 0
	for g := 0; g < n; g++ {
		size := avg
		if g < rem {
			size++
		}
		groups = append(groups, instances[start:start+size])
		start += size
	}
	return groups
}

// FilterID returns the instances whose id matches exactly.
func FilterID(instances []Instance, id string) []Instance {
	var out []Instance
	for _, inst := range instances {
		if inst.ID == id {
			out = append(out, inst)
		}
	}
	return out
}
