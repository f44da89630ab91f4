// Package tagging embeds artistic metadata and cover art into audio files.
package tagging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

const (
	coverDescription = "Front Cover"
	vendor           = "navistream"
)

// Metadata is the set of fields written into a file.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Lyrics      string
	TrackNumber int
	Year        int
}

// Supported reports whether format (an extension without the dot) gets
// tags written. Other formats pass through untouched.
func Supported(format string) bool {
	switch strings.ToLower(format) {
	case "flac", "mp3":
		return true
	}
	return false
}

// TagFile writes md and an optional cover into the file at filePath.
// format selects the writer; when empty it is taken from the extension.
// Unsupported formats are left as they are and return nil.
func TagFile(filePath, format string, md Metadata, cover []byte) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(filePath), ".")
	}

	switch strings.ToLower(format) {
	case "flac":
		return tagFLAC(filePath, md, cover)
	case "mp3":
		return tagMP3(filePath, md, cover)
	default:
		return nil
	}
}

// tagFLAC rebuilds the metadata block list and copies the audio frames
// verbatim: STREAMINFO and unrelated blocks are kept, the Vorbis comment is
// replaced, and any existing front cover is swapped for the new one.
func tagFLAC(filePath string, md Metadata, cover []byte) error {
	src, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer src.Close()

	// ParseMetadata consumes exactly the metadata blocks, leaving src at
	// the first audio frame.
	f, err := flac.ParseMetadata(src)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC metadata: %w", err)
	}

	var previous *flacvorbis.MetaDataBlockVorbisComment
	kept := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			if previous == nil {
				previous, _ = flacvorbis.ParseFromMetaDataBlock(*block)
			}
			continue
		case flac.Picture:
			if len(cover) > 0 && isFrontCover(block) {
				continue
			}
		case flac.Padding:
			continue
		}
		kept = append(kept, block)
	}

	vc := newVorbisComment(md, previous)
	vcBlock := vc.Marshal()
	kept = append(kept, &vcBlock)

	if len(cover) > 0 {
		pic := buildPicture(cover)
		picBlock := pic.Marshal()
		kept = append(kept, &picBlock)
	}
	f.Meta = kept

	return replaceFile(filePath, func(w io.Writer) error {
		if _, err := w.Write(f.Marshal()); err != nil {
			return fmt.Errorf("failed to write metadata blocks: %w", err)
		}
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("failed to copy audio data: %w", err)
		}
		return nil
	})
}

// replaceFile fills a sibling temp file through write and renames it over
// filePath so readers never observe a half-written file.
func replaceFile(filePath string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), "*.tag.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	success = true
	return nil
}

// newVorbisComment carries over comments from previous whose keys are not
// being rewritten, then appends the fields from md.
func newVorbisComment(md Metadata, previous *flacvorbis.MetaDataBlockVorbisComment) *flacvorbis.MetaDataBlockVorbisComment {
	vc := flacvorbis.New()
	vc.Vendor = vendor

	fields := vorbisFields(md)
	if previous != nil {
		for _, c := range previous.Comments {
			key, _, ok := strings.Cut(c, "=")
			if !ok {
				continue
			}
			if _, replaced := fields[strings.ToUpper(key)]; replaced {
				continue
			}
			vc.Comments = append(vc.Comments, c)
		}
	}

	for _, key := range vorbisOrder {
		if value := fields[key]; value != "" {
			_ = vc.Add(key, value)
		}
	}
	return vc
}

var vorbisOrder = []string{
	flacvorbis.FIELD_TITLE,
	flacvorbis.FIELD_ARTIST,
	flacvorbis.FIELD_ALBUM,
	flacvorbis.FIELD_TRACKNUMBER,
	flacvorbis.FIELD_DATE,
	flacvorbis.FIELD_GENRE,
	"UNSYNCEDLYRICS",
}

func vorbisFields(md Metadata) map[string]string {
	fields := map[string]string{
		flacvorbis.FIELD_TITLE:  md.Title,
		flacvorbis.FIELD_ARTIST: md.Artist,
		flacvorbis.FIELD_ALBUM:  md.Album,
		flacvorbis.FIELD_GENRE:  md.Genre,
		"UNSYNCEDLYRICS":        md.Lyrics,
	}
	if md.TrackNumber > 0 {
		fields[flacvorbis.FIELD_TRACKNUMBER] = strconv.Itoa(md.TrackNumber)
	}
	if md.Year > 0 {
		fields[flacvorbis.FIELD_DATE] = strconv.Itoa(md.Year)
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

func isFrontCover(block *flac.MetaDataBlock) bool {
	pic, err := flacpicture.ParseFromMetaDataBlock(*block)
	return err == nil && pic.PictureType == flacpicture.PictureTypeFrontCover
}

// buildPicture returns a front-cover picture block. Dimensions are filled
// in when the image decodes; otherwise they are left at zero.
func buildPicture(data []byte) *flacpicture.MetadataBlockPicture {
	mime := detectMIME(data)
	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, coverDescription, data, mime)
	if err != nil {
		return &flacpicture.MetadataBlockPicture{
			PictureType: flacpicture.PictureTypeFrontCover,
			MIME:        mime,
			Description: coverDescription,
			ImageData:   data,
		}
	}
	return pic
}

// detectMIME sniffs the image type so PNG covers aren't labelled image/jpeg.
func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// tagMP3 writes ID3v2.4 frames to an MP3 file.
func tagMP3(filePath string, md Metadata, cover []byte) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if md.Title != "" {
		tag.SetTitle(md.Title)
	}
	if md.Artist != "" {
		tag.SetArtist(md.Artist)
	}
	if md.Album != "" {
		tag.SetAlbum(md.Album)
	}
	if md.Genre != "" {
		tag.SetGenre(md.Genre)
	}
	if md.Year > 0 {
		tag.SetYear(strconv.Itoa(md.Year))
	}
	if md.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), strconv.Itoa(md.TrackNumber))
	}
	if md.Lyrics != "" {
		tag.DeleteFrames("USLT")
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "",
			Lyrics:            md.Lyrics,
		})
	}

	if len(cover) > 0 {
		tag.DeleteFrames("APIC")
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMIME(cover),
			PictureType: id3v2.PTFrontCover,
			Description: coverDescription,
			Picture:     cover,
		})
	}

	return tag.Save()
}
