package models

import "sort"

// HostStats counts response outcomes for one registrable domain
type HostStats struct {
	Host        string
	Matched     int
	Passthrough int
}

// DedupStats summarises a pipeline run
type DedupStats struct {
	Records     int // all records read in the rewrite pass
	Matched     int // responses replaced by revisit records
	Passthrough int // responses written unchanged
	Failed      int // passthrough responses whose lookup failed
	NoPrior     int // passthrough responses with no prior capture
	Hosts       map[string]*HostStats
}

// NewDedupStats returns an empty stats value ready for counting
func NewDedupStats() DedupStats {
	return DedupStats{Hosts: make(map[string]*HostStats)}
}

// CountResponse records the outcome of one response record
func (s *DedupStats) CountResponse(host string, result LookupResult) {
	if s.Hosts == nil {
		s.Hosts = make(map[string]*HostStats)
	}
	hs, ok := s.Hosts[host]
	if !ok {
		hs = &HostStats{Host: host}
		s.Hosts[host] = hs
	}

	if result.IsMatched() {
		s.Matched++
		hs.Matched++
		return
	}

	s.Passthrough++
	hs.Passthrough++
	if result.Status == StatusLookupFailed {
		s.Failed++
	} else {
		s.NoPrior++
	}
}

// Responses is the number of response records processed
func (s DedupStats) Responses() int {
	return s.Matched + s.Passthrough
}

// TopHosts returns up to n hosts ordered by matched count, then name
func (s DedupStats) TopHosts(n int) []HostStats {
	hosts := make([]HostStats, 0, len(s.Hosts))
	for _, hs := range s.Hosts {
		hosts = append(hosts, *hs)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Matched != hosts[j].Matched {
			return hosts[i].Matched > hosts[j].Matched
		}
		return hosts[i].Host < hosts[j].Host
	})
	if n > 0 && len(hosts) > n {
		hosts = hosts[:n]
	}
	return hosts
}
