package ripper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cvdub/mr-rippah/spotify/types"
)

const sourceURIsFrameDescription = "spotify_uris"

// tagTrackFile writes the ID3v2 frames of a finished MP3. The uris slice
// holds the requested track URI, plus the resolved one when the service
// substituted a re-linked recording.
func tagTrackFile(path string, meta types.TrackMetadata, uris []string, cover []byte) (err error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		return fmt.Errorf("failed to open track file for tagging: %v", err)
	}
	defer func() {
		if closeErr := tag.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close track file tag: %v", closeErr))
		}
	}()

	tag.SetTitle(meta.Title)
	tag.SetArtist(meta.Artist)
	tag.SetAlbum(meta.Album)
	tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, meta.AlbumArtist)
	tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(meta.TrackNumber))
	if meta.DiscNumber > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, strconv.Itoa(meta.DiscNumber))
	}
	if meta.ReleaseDate.Year > 0 {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, meta.ReleaseDate.Format())
	}
	if meta.ISRC != "" {
		tag.AddTextFrame("TSRC", id3v2.EncodingUTF8, meta.ISRC)
	}

	tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: sourceURIsFrameDescription,
		Value:       strings.Join(uris, "\n"),
	})

	if len(cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mimetype.Detect(cover).String(),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cover,
		})
	}

	if err := tag.Save(); nil != err {
		return fmt.Errorf("failed to save track file tag: %v", err)
	}

	return nil
}
