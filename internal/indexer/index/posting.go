package index

type Posting struct {
	DocID     uint64 `json:"doc_id"`
	Frequency int    `json:"tf"`
	Positions []int  `json:"pos"`
}

// PostingList is always kept sorted by ascending DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

type Stats struct {
	DocumentCount         int     `json:"document_count"`
	TotalLength           int64   `json:"total_length"`
	AverageDocumentLength float64 `json:"average_document_length"`
	TermCount             int     `json:"term_count"`
}

// DocIDs returns the document ids of the list in order.
func (pl PostingList) DocIDs() []uint64 {
	ids := make([]uint64, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}
