package ui

// AllLabel is the label of the implicit tab that clears a filter.
const AllLabel = "All"

// Tab is one rendered filter button. Value is nil for All.
type Tab[T ~string] struct {
	Index    int
	Label    string
	Value    *T
	Selected bool
}

// RawValue returns the option the tab emits, or "" for All.
func (t Tab[T]) RawValue() string {
	if t.Value == nil {
		return ""
	}
	return string(*t.Value)
}

// FilterTabs renders a set of options plus All. It holds no state of its own: the selection is
// owned by the caller.
type FilterTabs[T ~string] struct {
	Label    string
	Options  []T
	Selected *T
	// Format produces display labels. The emitted value is always the raw option.
	Format func(T) string
}

// Tabs returns All followed by one tab per option in the order supplied. Exactly one tab is
// selected as long as Selected is nil or one of Options.
func (f FilterTabs[T]) Tabs() []Tab[T] {
	tabs := make([]Tab[T], 0, len(f.Options)+1)
	tabs = append(tabs, Tab[T]{Index: 0, Label: AllLabel, Selected: f.Selected == nil})
	for i, opt := range f.Options {
		opt := opt
		label := string(opt)
		if f.Format != nil {
			label = f.Format(opt)
		}
		tabs = append(tabs, Tab[T]{
			Index:    i + 1,
			Label:    label,
			Value:    &opt,
			Selected: f.Selected != nil && *f.Selected == opt,
		})
	}
	return tabs
}

// Pick returns the value a click on tab index emits. Out of range indexes emit nil.
func (f FilterTabs[T]) Pick(index int) *T {
	if index <= 0 || index > len(f.Options) {
		return nil
	}
	v := f.Options[index-1]
	return &v
}
