package archive

import (
	"context"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/fs"
)

// ComicInfoName is the metadata member name comic readers look for.
const ComicInfoName = "ComicInfo.xml"

// Ensure ComicPackager implements mangascraper.Packager at compile time.
var _ mangascraper.Packager = (*ComicPackager)(nil)

// ComicPackager stores a chapter as destDir/<name>.cbz, a zip of the pages
// plus a ComicInfo.xml describing the chapter.
type ComicPackager struct{}

// NewComicPackager creates a new ComicPackager.
func NewComicPackager() *ComicPackager {
	return &ComicPackager{}
}

func (p *ComicPackager) Name() string {
	return "cbz"
}

func (p *ComicPackager) Save(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
	pages, err := fs.ListFiles(sourceDir)
	if err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "read pages")
	}
	info, err := ComicInfo(chapter, len(pages))
	if err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "build %s", ComicInfoName)
	}
	return writeArchive(ctx, chapter, sourceDir, destDir, ".cbz", extraFile{name: ComicInfoName, data: info})
}

var chapterNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ComicInfo renders the ComicInfo.xml document for a chapter.
func ComicInfo(chapter *mangascraper.Chapter, pageCount int) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("ComicInfo")
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	root.CreateAttr("xmlns:xsd", "http://www.w3.org/2001/XMLSchema")

	root.CreateElement("Title").SetText(chapter.Name())
	if chapter.CollectionName() != "" {
		root.CreateElement("Series").SetText(chapter.CollectionName())
	}
	if n := chapterNumber.FindString(chapter.Name()); n != "" {
		root.CreateElement("Number").SetText(n)
	}
	root.CreateElement("Web").SetText(chapter.URL())
	root.CreateElement("PageCount").SetText(strconv.Itoa(pageCount))
	root.CreateElement("Manga").SetText("Yes")

	doc.Indent(2)
	return doc.WriteToBytes()
}
