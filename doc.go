// Package drivekit provides a virtual filesystem over remote drive
// services, with POSIX-like path semantics, a seekable HTTP download
// reader, and a transactional move/rename protocol.
//
// A backend implements the small [RemoteAPI] surface (info, paged list,
// mkdir, rename, move, copy, remove, upload, download URL, mount
// table); the [FileSystem] layer builds everything else on top of it:
// lazy attribute caching through [Entry], recursive [FileSystem.Walk]
// and glob matching, and rename emulation across the gaps in the remote
// primitives.
//
// # Storage Drivers
//
//   - REST drive services (github.com/gobeaver/drivekit/driver/rest)
//   - Amazon S3 (github.com/gobeaver/drivekit/driver/s3)
//
// Drivers register themselves on import:
//
//	import (
//	    "github.com/gobeaver/drivekit"
//	    _ "github.com/gobeaver/drivekit/driver/rest"
//	)
//
//	fs, err := drivekit.NewFromEnv()
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	// List a directory
//	entries, err := fs.ListdirEntry(ctx, "/movies")
//
//	// Open a file as a seekable reader
//	r, err := fs.Open(ctx, "/movies/example.mkv")
//	defer r.Close()
//
//	// Rename across directories
//	err = fs.Rename(ctx, "/movies/a.mkv", "/archive/b.mkv")
//
// Reads go through [HTTPReader], which resumes the download with a
// range request after a dropped connection and re-resolves the
// download URL when it expires.
package drivekit
