package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	objHeaderPattern   = regexp.MustCompile(`(?m)^(\d+) 0 obj\b`)
	pageTypePattern    = regexp.MustCompile(`/Type\s*/Page[^s]`)
	sizePattern        = regexp.MustCompile(`/Size\s+(\d+)`)
	startxrefPattern   = regexp.MustCompile(`startxref\s+(\d+)`)
	contentsRefPattern = regexp.MustCompile(`/Contents\s+(\d+ 0 R)`)
	contentsArrPattern = regexp.MustCompile(`/Contents\s*\[([^\]]*)\]`)
)

// Stamp appends an incremental update that draws the overlay canvas onto
// every page of an existing document. The prior bytes are carried over
// untouched; the update adds one shared content stream, redefines each page
// object to reference it, and chains a new cross-reference section to the
// previous one. Stamping an already stamped document stacks the overlays.
func Stamp(doc []byte, overlay *Canvas) ([]byte, error) {
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		return nil, fmt.Errorf("pdf: not a PDF document")
	}

	size, err := lastTrailerSize(doc)
	if err != nil {
		return nil, err
	}
	prevXref, err := lastStartXref(doc)
	if err != nil {
		return nil, err
	}

	pages := findPageObjects(doc)
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf: no page objects found")
	}

	out := make([]byte, len(doc), len(doc)+4096)
	copy(out, doc)
	buf := bytes.NewBuffer(out)
	if doc[len(doc)-1] != '\n' {
		buf.WriteByte('\n')
	}

	// One shared stream; every page's /Contents becomes an array ending in
	// it, so existing page content keeps rendering underneath.
	content := "q\n" + overlay.Content() + "Q\n"
	overlayNum := size
	offsets := map[int]int{overlayNum: buf.Len()}
	fmt.Fprintf(buf, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", overlayNum, len(content), content)

	nums := make([]int, 0, len(pages))
	for num := range pages {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	for _, num := range nums {
		body, err := rewriteContents(pages[num], overlayNum)
		if err != nil {
			return nil, fmt.Errorf("pdf: page object %d: %w", num, err)
		}
		offsets[num] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	xrefPos := buf.Len()
	writeXrefSections(buf, offsets)

	buf.WriteString("trailer\n")
	fmt.Fprintf(buf, "<< /Size %d\n/Root %d 0 R\n/Prev %d\n>>\n", size+1, objCatalog, prevXref)
	buf.WriteString("startxref\n")
	fmt.Fprintf(buf, "%d\n", xrefPos)
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), nil
}

// lastTrailerSize returns /Size from the most recent trailer.
func lastTrailerSize(doc []byte) (int, error) {
	matches := sizePattern.FindAllSubmatch(doc, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("pdf: trailer /Size not found")
	}
	return strconv.Atoi(string(matches[len(matches)-1][1]))
}

// lastStartXref returns the offset of the most recent xref section.
func lastStartXref(doc []byte) (int, error) {
	matches := startxrefPattern.FindAllSubmatch(doc, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("pdf: startxref not found")
	}
	return strconv.Atoi(string(matches[len(matches)-1][1]))
}

// findPageObjects returns the body of the latest definition of every page
// object, keyed by object number. Taking the last definition per number is
// what makes re-stamping stack instead of resurrecting stale pages.
func findPageObjects(doc []byte) map[int]string {
	headers := objHeaderPattern.FindAllSubmatchIndex(doc, -1)

	bodies := make(map[int]string)
	for _, h := range headers {
		num, err := strconv.Atoi(string(doc[h[2]:h[3]]))
		if err != nil {
			continue
		}
		end := bytes.Index(doc[h[1]:], []byte("endobj"))
		if end < 0 {
			continue
		}
		bodies[num] = string(bytes.TrimSpace(doc[h[1] : h[1]+end]))
	}

	pages := make(map[int]string)
	for num, body := range bodies {
		if pageTypePattern.MatchString(body) {
			pages[num] = body
		}
	}
	return pages
}

// rewriteContents returns the page body with the overlay stream appended to
// its /Contents entry.
func rewriteContents(body string, overlayNum int) (string, error) {
	overlayRef := fmt.Sprintf("%d 0 R", overlayNum)

	if m := contentsArrPattern.FindStringSubmatch(body); m != nil {
		replacement := fmt.Sprintf("/Contents [%s %s]", m[1], overlayRef)
		return contentsArrPattern.ReplaceAllLiteralString(body, replacement), nil
	}
	if m := contentsRefPattern.FindStringSubmatch(body); m != nil {
		replacement := fmt.Sprintf("/Contents [%s %s]", m[1], overlayRef)
		return contentsRefPattern.ReplaceAllLiteralString(body, replacement), nil
	}
	return "", fmt.Errorf("no /Contents entry")
}

// writeXrefSections emits an xref table for the updated objects, grouped
// into contiguous subsections as the incremental-update format requires.
func writeXrefSections(buf *bytes.Buffer, offsets map[int]int) {
	nums := make([]int, 0, len(offsets))
	for num := range offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(buf, "%010d 00000 n \n", offsets[nums[k]])
		}
		i = j + 1
	}
}
