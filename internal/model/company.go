package model

import "time"

// CandidateStatus is the discovery lifecycle of a PotentialCompany.
type CandidateStatus string

const (
	CandidatePending    CandidateStatus = "pending"
	CandidateChecking   CandidateStatus = "checking"
	CandidateDiscovered CandidateStatus = "discovered"
	CandidateNotFound   CandidateStatus = "not_found"
)

// PotentialCompany is a discovery candidate. Seeded externally, transitioned
// only by the discovery prober.
type PotentialCompany struct {
	Slug          string
	Status        CandidateStatus
	CheckCount    int
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// DiscoveredCompany is a company board confirmed on an ATS.
type DiscoveredCompany struct {
	Slug              string
	Source            string
	JobCount          int
	RemoteJobCount    int
	Departments       []string
	SuggestedCategory int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
