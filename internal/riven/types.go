package riven

// Item states the monitor cares about. Riven tracks more states than
// these; only the stuck ones are ever requested.
const (
	StateFailed  = "Failed"
	StateStalled = "Stalled"
)

// Item is a media item tracked by Riven.
type Item struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"` // "movie", "show", "season", "episode"
	State       string `json:"state"`
	ImdbID      string `json:"imdb_id"`
	RequestedAt string `json:"requested_at"`
}

// itemsResponse is the envelope returned by the items listing endpoint.
type itemsResponse struct {
	Items      []Item `json:"items"`
	TotalItems int    `json:"total_items"`
}

// Stream is a scraped torrent candidate for an item, ranked by Riven's
// own scraping pipeline. Rank is higher-is-better.
type Stream struct {
	Infohash string `json:"infohash"`
	RawTitle string `json:"raw_title"`
	Rank     int    `json:"rank"`
}
