package wordpress

// PostStatus values accepted by the posts endpoint.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
)

// PostInput is the writable subset of a WordPress post.
type PostInput struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt"`
	Slug          string `json:"slug"`
	Status        string `json:"status"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
}

// Post is the part of a post response the publisher reads back.
type Post struct {
	ID     int    `json:"id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
	Link   string `json:"link"`
}

// Media is the part of a media response the publisher reads back.
type Media struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text"`
}
