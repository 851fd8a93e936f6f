// Package storage provides the on-disk layout for downloaded media.
//
// The storage package handles:
//   - Creating the board and thread directories
//   - Turning thread subjects into safe path segments
//   - Existence checks used as the second de-duplication guard
//   - Streamed atomic writes (temporary file, sync, rename)
//
// Layout:
//
//	<media_dir>/<board>/<thread_id>_<sanitized_subject>/<tim><ext>
//
// Usage:
//
//	manager, err := storage.NewManager("downloads", "b")
//	if err != nil {
//	    return err
//	}
//
//	dir, err := manager.EnsureThreadDir("111", "Hello")
//	path, err := manager.AttachmentPath(dir, "555.jpg")
//	if !manager.Exists(path) {
//	    _, err = manager.Save(body, path)
//	}
package storage
