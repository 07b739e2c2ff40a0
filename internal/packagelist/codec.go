package packagelist

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jcdickinson/docloc/internal/naming"
)

const (
	propertyPrefix  = "$dokka."
	formatKey       = "format"
	linkExtKey      = "linkExtension"
	locationKey     = "location"
	modulePrefix    = "module:"
	relocationSep   = "###"
	unitSeparator   = "\x1f"
	maxLineCapacity = 1024 * 1024
)

// Parse reads a package list. Content is never rejected: unknown lines are
// treated as package names and format validity is checked separately by
// Validate. Only read errors are returned.
func Parse(r io.Reader) (*PackageList, error) {
	l := New("", "")
	current := ""

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineCapacity)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, propertyPrefix):
			key, value, _ := strings.Cut(line[len(propertyPrefix):], ":")
			switch key {
			case formatKey:
				l.Format = value
			case linkExtKey:
				l.LinkExtension = value
			case locationKey:
				if k, v, ok := cutRelocation(value); ok {
					l.SetLocation(k, v)
				}
			default:
				l.Properties[key] = value
			}
		case strings.HasPrefix(line, modulePrefix):
			current = line[len(modulePrefix):]
			l.module(current)
		case strings.Contains(line, relocationSep):
			k, v, _ := cutRelocation(line)
			l.SetLocation(k, v)
		default:
			pkg := line
			if pkg == naming.RootPackage {
				pkg = ""
			}
			l.AddPackage(current, pkg)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading package list: %w", err)
	}
	return l, nil
}

// ParseString parses a package list held in memory.
func ParseString(s string) *PackageList {
	// strings.Reader never fails; lines longer than the scanner limit are the
	// only possible error and are not produced by any writer.
	l, err := Parse(strings.NewReader(s))
	if err != nil {
		return New("", "")
	}
	return l
}

func cutRelocation(s string) (key, location string, ok bool) {
	if k, v, found := strings.Cut(s, relocationSep); found {
		return k, v, true
	}
	return strings.Cut(s, unitSeparator)
}

// WriteTo serializes l in canonical order: headers, remaining properties,
// relocations sorted by key, the unnamed section, then named sections.
func (l *PackageList) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	emit := func(s string) {
		c, _ := bw.WriteString(s)
		n += int64(c)
		c, _ = bw.WriteString("\n")
		n += int64(c)
	}

	if l.Format != "" {
		emit(propertyPrefix + formatKey + ":" + l.Format)
	}
	if l.LinkExtension != "" {
		emit(propertyPrefix + linkExtKey + ":" + l.LinkExtension)
	}
	for _, k := range slices.Sorted(maps.Keys(l.Properties)) {
		emit(propertyPrefix + k + ":" + l.Properties[k])
	}
	for _, k := range slices.Sorted(maps.Keys(l.Locations)) {
		if strings.Contains(k, relocationSep) {
			emit(propertyPrefix + locationKey + ":" + k + unitSeparator + l.Locations[k])
			continue
		}
		emit(k + relocationSep + l.Locations[k])
	}

	writeSection := func(m Module) {
		for _, p := range slices.Sorted(slices.Values(m.Packages)) {
			if p == "" {
				p = naming.RootPackage
			}
			emit(p)
		}
	}
	for _, m := range l.Modules {
		if m.Name == "" {
			writeSection(m)
		}
	}
	for _, m := range l.Modules {
		if m.Name != "" {
			emit(modulePrefix + m.Name)
			writeSection(m)
		}
	}

	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("writing package list: %w", err)
	}
	return n, nil
}

// String returns the serialized form.
func (l *PackageList) String() string {
	var b strings.Builder
	l.WriteTo(&b)
	return b.String()
}
