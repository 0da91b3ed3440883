package presence

// Style carries rendering overrides for the cursor and its chat bubble.
// Empty fields fall back to the defaults; the synchronization core never
// reads it.
type Style struct {
	CursorSize            string
	CursorImage           string
	BubbleBorderRadius    string
	BubbleBackgroundColor string
	BubbleFontColor       string
	AvatarBorderRadius    string
	InputBorderRadius     string
	InputTextStyle        map[string]string
}

func DefaultStyle() Style {
	return Style{
		CursorSize:         "20",
		BubbleBorderRadius: "18px",
		BubbleFontColor:    "#fff",
		AvatarBorderRadius: "12px",
		InputBorderRadius:  "2px 20px 31px 20px",
	}
}

// WithDefaults fills every empty override from DefaultStyle.
func (s Style) WithDefaults() Style {
	d := DefaultStyle()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.CursorSize, d.CursorSize)
	fill(&s.BubbleBorderRadius, d.BubbleBorderRadius)
	fill(&s.BubbleFontColor, d.BubbleFontColor)
	fill(&s.AvatarBorderRadius, d.AvatarBorderRadius)
	fill(&s.InputBorderRadius, d.InputBorderRadius)
	return s
}
