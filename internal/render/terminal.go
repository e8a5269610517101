package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette colours for the terminal summary.
var (
	Accent    = lipgloss.Color("#FE2C55")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	Ink       = lipgloss.Color("#111827")
	Paper     = lipgloss.Color("#F9FAFB")
)

type termStyles struct {
	frame lipgloss.Style
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	link  lipgloss.Style
	muted lipgloss.Style
}

func stylesFor(dark bool) termStyles {
	fg, muted := Ink, DimGray
	if dark {
		fg, muted = Paper, LightGray
	}
	return termStyles{
		frame: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Accent).Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true).Foreground(Accent),
		label: lipgloss.NewStyle().Foreground(muted).Width(10),
		value: lipgloss.NewStyle().Foreground(fg),
		link:  lipgloss.NewStyle().Foreground(fg).Underline(true),
		muted: lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// Terminal writes a styled summary of v to w.
func Terminal(w io.Writer, v View, dark bool) error {
	s := stylesFor(dark)
	var lines []string
	row := func(label, value string, st lipgloss.Style) {
		lines = append(lines, s.label.Render(label)+" "+st.Render(value))
	}

	lines = append(lines, s.title.Render(v.Title))
	if v.AuthorVisible {
		author := v.Author.Name
		if like := v.Author.LikeText(); like != "" {
			author = strings.TrimSpace(author + "  " + like)
		}
		row("作者", author, s.value)
	}
	row("发布时间", v.Date, s.value)
	row("作品类型", v.TypeLabel, s.value)

	switch {
	case v.Mode == ImageGallery:
		for i, img := range v.Images {
			row(fmt.Sprintf("图片 %d", i+1), img, s.link)
		}
	case v.VideoState == VideoPlayable:
		row("视频", v.VideoURL, s.link)
	case v.VideoState == VideoCoverOnly:
		row("视频", "仅封面", s.muted)
	default:
		row("视频", "无可用视频", s.muted)
	}
	if v.CoverURL != "" {
		row("封面", v.CoverURL, s.link)
	}

	if v.MusicPlayable {
		row("音乐", v.Music.Title+" - "+v.Music.Author, s.value)
		row("", v.Music.URL, s.link)
	} else {
		row("音乐", OriginalSound, s.muted)
	}

	_, err := fmt.Fprintln(w, s.frame.Render(strings.Join(lines, "\n")))
	return err
}
