package board

import (
	"html"
	"regexp"
	"strconv"
)

// validExtension matches the extensions the image host serves, e.g. ".jpg"
var validExtension = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// Thread is one catalog entry
type Thread struct {
	ID      string
	Subject string
}

// Post is one reply (or the opening post) of a thread
type Post struct {
	ID         string
	Attachment *Attachment
}

// Attachment identifies a media file on the image host
type Attachment struct {
	RemoteID  string
	Extension string
}

// FileName returns the local and remote file name, e.g. "1700000000123.jpg"
func (a Attachment) FileName() string {
	return a.RemoteID + a.Extension
}

// ResolveAttachment returns the post's attachment, if it has one.
// A post without both a remote id and an extension has no attachment, and
// neither has one whose extension is not a plain ".ext" token.
func ResolveAttachment(p Post) (Attachment, bool) {
	if p.Attachment == nil || p.Attachment.RemoteID == "" || !validExtension.MatchString(p.Attachment.Extension) {
		return Attachment{}, false
	}
	return *p.Attachment, true
}

// catalogPage is one page of catalog.json
type catalogPage struct {
	Page    int             `json:"page"`
	Threads []catalogThread `json:"threads"`
}

type catalogThread struct {
	No  *int64  `json:"no"`
	Sub *string `json:"sub"`
}

// threadResponse is the body of thread/<id>.json
type threadResponse struct {
	Posts []wirePost `json:"posts"`
}

type wirePost struct {
	No  *int64  `json:"no"`
	Tim *int64  `json:"tim"`
	Ext *string `json:"ext"`
}

// toThreads flattens catalog pages in order, dropping threads without an id
// and repeated ids (first occurrence wins).
func toThreads(pages []catalogPage) []Thread {
	seen := make(map[int64]struct{})
	threads := make([]Thread, 0)

	for _, page := range pages {
		for _, t := range page.Threads {
			if t.No == nil {
				continue
			}
			if _, dup := seen[*t.No]; dup {
				continue
			}
			seen[*t.No] = struct{}{}

			subject := ""
			if t.Sub != nil {
				subject = html.UnescapeString(*t.Sub)
			}
			threads = append(threads, Thread{
				ID:      strconv.FormatInt(*t.No, 10),
				Subject: subject,
			})
		}
	}
	return threads
}

// toPosts converts wire posts, dropping posts without an id. An invalid
// extension leaves the post without an attachment.
func toPosts(resp threadResponse) []Post {
	posts := make([]Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		if p.No == nil {
			continue
		}
		post := Post{ID: strconv.FormatInt(*p.No, 10)}
		if p.Tim != nil && p.Ext != nil && validExtension.MatchString(*p.Ext) {
			post.Attachment = &Attachment{
				RemoteID:  strconv.FormatInt(*p.Tim, 10),
				Extension: *p.Ext,
			}
		}
		posts = append(posts, post)
	}
	return posts
}
