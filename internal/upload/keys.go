package upload

import (
	"encoding/base64"
	"path"
	"strings"
)

const (
	// vframeFormat is the image format of extracted video thumbnails.
	vframeFormat = "jpg"
	// vframeOffset is the extraction offset in seconds, effectively the
	// first frame.
	vframeOffset = "0.001"
	// avthumbMp4Prefix namespaces transcoded video keys.
	avthumbMp4Prefix = "avthumb/mp4"
)

// deriveKeys computes the destination keys for a video object's derived
// artifacts from its source key. The thumbnail lands next to the source
// (same directory, image extension); the transcoded video lands under the
// avthumb/mp4 namespace. Pure string manipulation, no filesystem access.
func deriveKeys(key string) (thumbKey, mp4Key string) {
	dir := path.Dir(key)
	base := strings.TrimSuffix(path.Base(key), path.Ext(key))

	thumbKey = base + "." + vframeFormat
	mp4Name := base + ".mp4"
	if dir != "." {
		thumbKey = dir + "/" + thumbKey
		mp4Name = dir + "/" + mp4Name
	}
	mp4Key = avthumbMp4Prefix + "/" + mp4Name
	return thumbKey, mp4Key
}

// baseCopyKey computes the legacy sibling key with a "_base" marker
// inserted before the final extension component.
func baseCopyKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "_base" + ext
}

// encodeSaveAs encodes a "bucket:key" destination for a saveas target.
// The pipeline requires standard-alphabet base64 here.
func encodeSaveAs(bucket, key string) string {
	return base64.StdEncoding.EncodeToString([]byte(bucket + ":" + key))
}
