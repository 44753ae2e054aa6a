// internal/workers/catalog/index-rank-catalog/models.go
package indexrankcatalog

type RankInput struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type Input struct {
	Ranks []RankInput `json:"ranks" yaml:"ranks"`
}

type EntryError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type Output struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	TotalRanks     int          `json:"totalRanks"`
	CreatedRanks   int          `json:"createdRanks"`
	FailedRanks    int          `json:"failedRanks"`
	CreatedRankIDs []string     `json:"createdRankIds"`
	Errors         []EntryError `json:"errors,omitempty"`
}
