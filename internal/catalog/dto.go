package catalog

import "encoding/json"

// Wire shapes of the hifi-style catalog API.

type APIArtist struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type APIArtistWithPicture struct {
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	Picture string      `json:"picture"`
}

type APIAlbumStub struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	ReleaseDate string      `json:"releaseDate"`
	Genre       string      `json:"genre"`
	Cover       FlexCover   `json:"cover"`
}

type APITrackItem struct {
	ID           json.Number  `json:"id"`
	Title        string       `json:"title"`
	AudioQuality string       `json:"audioQuality"`
	Artist       APIArtist    `json:"artist"`
	Artists      []APIArtist  `json:"artists"`
	Album        APIAlbumStub `json:"album"`
	TrackNumber  int          `json:"trackNumber"`
	Duration     int          `json:"duration"`
}

// PrimaryArtist returns the first credited artist.
func (t APITrackItem) PrimaryArtist() APIArtist {
	if len(t.Artists) > 0 {
		return t.Artists[0]
	}
	return t.Artist
}

type APIAlbumItem struct {
	ID           json.Number `json:"id"`
	Title        string      `json:"title"`
	Type         string      `json:"type"`
	ReleaseDate  string      `json:"releaseDate"`
	AudioQuality string      `json:"audioQuality"`
	Cover        FlexCover   `json:"cover"`
	Artist       APIArtist   `json:"artist"`
	Artists      []APIArtist `json:"artists"`
}

func (a APIAlbumItem) PrimaryArtist() APIArtist {
	if len(a.Artists) > 0 {
		return a.Artists[0]
	}
	return a.Artist
}

type APISearchTracksResponse struct {
	Data struct {
		Items []APITrackItem `json:"items"`
	} `json:"data"`
}

type APISearchAlbumsResponse struct {
	Data struct {
		Albums struct {
			Items []APIAlbumItem `json:"items"`
		} `json:"albums"`
	} `json:"data"`
}

type APISearchArtistsResponse struct {
	Data struct {
		Artists struct {
			Items []APIArtistWithPicture `json:"items"`
		} `json:"artists"`
	} `json:"data"`
}

type APIAlbumResponse struct {
	Data struct {
		APIAlbumItem
		Items []struct {
			Item APITrackItem `json:"item"`
		} `json:"items"`
	} `json:"data"`
}

type APIArtistResponse struct {
	Artist APIArtistWithPicture `json:"artist"`
}

type APIArtistAggregationResponse struct {
	Albums struct {
		Items []APIAlbumItem `json:"items"`
	} `json:"albums"`
	Tracks  []APITrackItem         `json:"tracks"`
	Similar []APIArtistWithPicture `json:"similar"`
}

type APITrackInfoResponse struct {
	Data APITrackItem `json:"data"`
}

type APIStreamResponse struct {
	Data struct {
		Manifest         string `json:"manifest"`
		ManifestMimeType string `json:"manifestMimeType"`
		AudioQuality     string `json:"audioQuality"`
	} `json:"data"`
}

// APIBTSManifest is the decoded application/vnd.tidal.bts manifest.
type APIBTSManifest struct {
	MimeType string   `json:"mimeType"`
	Codecs   string   `json:"codecs"`
	URLs     []string `json:"urls"`
}
