// Package render turns a parsed media record into presentable output: a
// resolved View, HTML nodes for a result page and a styled terminal summary.
package render

import (
	"go-video-parse/internal/helpers"
	"go-video-parse/internal/models"
)

// Mode is the top-level presentation mode of a result.
type Mode int

const (
	SingleVideo Mode = iota
	ImageGallery
)

func (m Mode) String() string {
	if m == ImageGallery {
		return "gallery"
	}
	return "video"
}

// VideoState describes what a SingleVideo result can show in its media block.
type VideoState int

const (
	VideoEmpty VideoState = iota
	VideoPlayable
	VideoCoverOnly
)

func (s VideoState) String() string {
	switch s {
	case VideoPlayable:
		return "playable"
	case VideoCoverOnly:
		return "cover-only"
	default:
		return "empty"
	}
}

// CopyTarget names a value the user can copy from a result.
type CopyTarget int

const (
	CopyCover CopyTarget = iota
	CopyURL
)

// Label is the user-facing noun for the copied value.
func (c CopyTarget) Label() string {
	if c == CopyURL {
		return "视频链接"
	}
	return "封面链接"
}

// Placeholder texts.
const (
	UnknownTitle  = "未知标题"
	UnknownTime   = "未知时间"
	TypeGallery   = "图片集"
	TypeVideo     = "视频"
	OriginalSound = "视频原声"
	UnknownMusic  = "未知音乐"
	UnknownAuthor = "未知作者"
)

// Author is the resolved author block.
type Author struct {
	Name   string
	Avatar string
	Like   int64
}

// LikeText renders the like counter, or "" when there is nothing to show.
func (a Author) LikeText() string {
	if a.Like <= 0 {
		return ""
	}
	return "点赞 " + helpers.FormatNumber(a.Like)
}

// Music is the resolved, playable soundtrack.
type Music struct {
	URL    string
	Title  string
	Author string
	Avatar string
}

// View is everything the builders need, derived once from a record. All URLs
// are already cleaned.
type View struct {
	Mode       Mode
	VideoState VideoState

	Title     string
	Date      string
	TypeLabel string

	VideoURL string
	CoverURL string
	Images   []string

	AuthorVisible bool
	Author        Author

	MusicPlayable bool
	Music         Music

	CopyTargets []CopyTarget
}

// Resolve derives the View for rec. It never fails; missing or unusable
// fields turn into placeholders.
func Resolve(rec models.MediaRecord) View {
	v := View{
		Title:    models.Str(rec.Title),
		CoverURL: helpers.CleanURL(models.Str(rec.Cover)),
		VideoURL: helpers.CleanURL(models.Str(rec.URL)),
	}
	if v.Title == "" {
		v.Title = UnknownTitle
	}
	if rec.Time != nil {
		v.Date = helpers.FormatDate(*rec.Time)
	}
	if v.Date == "" {
		v.Date = UnknownTime
	}

	if rec.HasImages() {
		v.Mode = ImageGallery
		v.TypeLabel = TypeGallery
		v.Images = make([]string, 0, len(rec.Images))
		for _, img := range rec.Images {
			v.Images = append(v.Images, helpers.CleanURL(img))
		}
		v.CopyTargets = []CopyTarget{CopyCover}
	} else {
		v.Mode = SingleVideo
		v.TypeLabel = TypeVideo
		switch {
		case v.VideoURL != "":
			v.VideoState = VideoPlayable
		case v.CoverURL != "":
			v.VideoState = VideoCoverOnly
		default:
			v.VideoState = VideoEmpty
		}
		v.CopyTargets = []CopyTarget{CopyCover, CopyURL}
	}

	// An avatar on its own does not make the block visible.
	v.Author = Author{
		Name:   models.Str(rec.Author),
		Avatar: helpers.CleanURL(models.Str(rec.Avatar)),
	}
	if rec.Like != nil {
		v.Author.Like = *rec.Like
	}
	v.AuthorVisible = v.Author.Name != "" || v.Author.Like > 0

	if m := rec.Music; m != nil {
		if raw := models.Str(m.URL); raw != "" && helpers.IsValidURL(raw) {
			v.MusicPlayable = true
			v.Music = Music{
				URL:    helpers.CleanURL(raw),
				Title:  models.Str(m.Title),
				Author: models.Str(m.Author),
				Avatar: helpers.CleanURL(models.Str(m.Avatar)),
			}
			if v.Music.Title == "" {
				v.Music.Title = UnknownMusic
			}
			if v.Music.Author == "" {
				v.Music.Author = UnknownAuthor
			}
		}
	}

	return v
}

// CopyValue returns the value for target, or "" when the result has none.
func (v View) CopyValue(target CopyTarget) string {
	if target == CopyURL {
		return v.VideoURL
	}
	return v.CoverURL
}

// Offers reports whether the result's mode exposes target as a copy action.
func (v View) Offers(target CopyTarget) bool {
	for _, t := range v.CopyTargets {
		if t == target {
			return true
		}
	}
	return false
}
