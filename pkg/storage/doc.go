// Package storage writes downloaded media into a directory on an afero
// filesystem.
//
// Writes are atomic: bytes go to "<name>.part" and are renamed into place
// once the copy and close succeed. A failed download never leaves a file
// that looks complete, so the media fetcher can ignore .part files.
//
//	m, err := storage.NewManager(afero.NewOsFs(), stagingDir)
//	if err != nil {
//	    return err
//	}
//	n, err := m.Save(resp.Body, "20240101T233000_UTC_someprofile.mp4")
package storage
