package render

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// el builds an element node. attrs are key/value pairs.
func el(a atom.Atom, attrs []string, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []string { return kv }

// InfoCard builds one labelled metadata card.
func InfoCard(label, value string) *html.Node {
	return el(atom.Div, attrs("class", "info-card"),
		el(atom.Div, attrs("class", "info-label"), text(label)),
		el(atom.Div, attrs("class", "info-value"), text(value)),
	)
}

// MetadataBlock builds the title, publish time and type cards.
func MetadataBlock(v View) *html.Node {
	return el(atom.Div, attrs("class", "info-grid"),
		InfoCard("作品标题", v.Title),
		InfoCard("发布时间", v.Date),
		InfoCard("作品类型", v.TypeLabel),
	)
}

// AuthorBlock returns nil when the view has no author to show.
func AuthorBlock(v View) *html.Node {
	if !v.AuthorVisible {
		return nil
	}
	block := el(atom.Div, attrs("class", "author"))
	if v.Author.Avatar != "" {
		block.AppendChild(el(atom.Img, attrs("class", "author-avatar", "src", v.Author.Avatar, "alt", "头像")))
	}
	info := el(atom.Div, attrs("class", "author-info"))
	if v.Author.Name != "" {
		info.AppendChild(el(atom.Div, attrs("class", "author-name"), text(v.Author.Name)))
	}
	if like := v.Author.LikeText(); like != "" {
		info.AppendChild(el(atom.Div, attrs("class", "author-like"), text(like)))
	}
	block.AppendChild(info)
	return block
}

// MusicBlock builds the audio player with a download button, or the static
// original-sound placeholder.
func MusicBlock(v View) *html.Node {
	if !v.MusicPlayable {
		return el(atom.Div, attrs("class", "music music-none"),
			el(atom.H4, nil, text(OriginalSound)),
		)
	}
	m := v.Music
	row := el(atom.Div, attrs("class", "music-row"))
	if m.Avatar != "" {
		row.AppendChild(el(atom.Img, attrs("class", "music-cover", "src", m.Avatar, "alt", m.Title)))
	}
	row.AppendChild(el(atom.Div, attrs("class", "music-info"),
		el(atom.Div, attrs("class", "music-meta"),
			el(atom.H4, nil, text(m.Title)),
			el(atom.P, nil, text(m.Author)),
		),
		el(atom.Div, attrs("class", "music-controls"),
			el(atom.Audio, attrs("controls", ""),
				el(atom.Source, attrs("src", m.URL, "type", "audio/mpeg")),
			),
			el(atom.A, attrs("class", "download", "href", m.URL, "download", ""), text("下载")),
		),
	))
	return el(atom.Div, attrs("class", "music"), row)
}

// VideoBlock builds the single-video media block and its download link.
func VideoBlock(v View) *html.Node {
	preview := el(atom.Div, attrs("class", "preview"))
	switch v.VideoState {
	case VideoPlayable:
		a := attrs("controls", "", "src", v.VideoURL)
		if v.CoverURL != "" {
			a = append(a, "poster", v.CoverURL)
		}
		preview.AppendChild(el(atom.Video, a))
	case VideoCoverOnly:
		preview.AppendChild(el(atom.Img, attrs("class", "video-cover", "src", v.CoverURL, "alt", "视频封面")))
	default:
		preview.AppendChild(el(atom.Div, attrs("class", "video-placeholder"), text("🎬")))
	}

	link := attrs("class", "download-video")
	if v.VideoURL != "" {
		link = append(link, "href", v.VideoURL, "download", "")
	} else {
		link = append(link, "aria-disabled", "true")
	}
	return el(atom.Div, attrs("class", "video"),
		preview,
		el(atom.A, link, text("下载无水印视频")),
	)
}

// GalleryBlock builds one slide per image, the navigation elements and the
// download-all button.
func GalleryBlock(v View) *html.Node {
	wrapper := el(atom.Div, attrs("class", "swiper-wrapper"))
	for i, img := range v.Images {
		wrapper.AppendChild(el(atom.Div, attrs("class", "swiper-slide", "data-index", strconv.Itoa(i+1)),
			el(atom.Img, attrs("src", img, "loading", "lazy", "alt", fmt.Sprintf("图片 %d", i+1))),
			el(atom.A, attrs("class", "download", "href", img, "download", ""), text("下载")),
		))
	}
	return el(atom.Div, attrs("class", "gallery"),
		el(atom.Div, attrs("class", "swiper-container"),
			wrapper,
			el(atom.Div, attrs("class", "swiper-pagination")),
			el(atom.Div, attrs("class", "swiper-button-prev")),
			el(atom.Div, attrs("class", "swiper-button-next")),
		),
		el(atom.Button, attrs("class", "download-all", "type", "button"),
			text(fmt.Sprintf("下载全部图片（%d张）", len(v.Images)))),
	)
}

// CopyButtons builds the copy actions the view's mode offers.
func CopyButtons(v View) *html.Node {
	bar := el(atom.Div, attrs("class", "copy-actions"))
	for _, target := range v.CopyTargets {
		id := "copy-cover-btn"
		if target == CopyURL {
			id = "copy-url-btn"
		}
		bar.AppendChild(el(atom.Button,
			attrs("id", id, "type", "button", "data-copy", v.CopyValue(target)),
			text("复制"+target.Label())))
	}
	return bar
}

// ResultNode assembles the complete result section for v.
func ResultNode(v View) *html.Node {
	section := el(atom.Section, attrs("class", "result", "data-mode", v.Mode.String()))
	if author := AuthorBlock(v); author != nil {
		section.AppendChild(author)
	}
	if v.Mode == ImageGallery {
		section.AppendChild(GalleryBlock(v))
	} else {
		section.AppendChild(VideoBlock(v))
	}
	section.AppendChild(CopyButtons(v))
	section.AppendChild(MetadataBlock(v))
	section.AppendChild(MusicBlock(v))
	return section
}

// WritePage renders a standalone HTML document for v. The root element
// carries class "dark" when dark is set.
func WritePage(w io.Writer, v View, dark bool) error {
	root := attrs("lang", "zh-CN")
	if dark {
		root = append(root, "class", "dark")
	}
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(el(atom.Html, root,
		el(atom.Head, nil,
			el(atom.Meta, attrs("charset", "utf-8")),
			el(atom.Title, nil, text(v.Title)),
		),
		el(atom.Body, nil, ResultNode(v)),
	))
	return html.Render(w, doc)
}
