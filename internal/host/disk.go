package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
	"github.com/diskfs/go-diskfs/backend"
	befile "github.com/diskfs/go-diskfs/backend/file"
	lru "github.com/hashicorp/golang-lru/v2"

	"legacyboot/internal/compress"
	"legacyboot/internal/firmware"
	"legacyboot/internal/volume"
)

const sectorSize = 512

// Disk is a disk image file served as a block device. Reads go through an
// LRU sector cache, writes go straight to the file and refresh the cache.
// Compressed images are expanded into a scratch file first; writes to them
// are lost when the disk is closed.
type Disk struct {
	Path       string
	Kind       volume.DiskKind
	ReadOnly   bool
	DevicePath firmware.DevicePath

	overrides []VolumeSpec

	mu       sync.Mutex
	store    backend.Storage
	writer   backend.WritableFile
	workPath string
	scratch  bool
	sectors  uint64
	mediaID  uint32
	cache    *lru.Cache[uint64, []byte]
}

// OpenDisk opens the image at path. cacheSectors of zero disables the
// sector cache.
func OpenDisk(path string, kind volume.DiskKind, readOnly bool, cacheSectors int) (*Disk, error) {
	d := &Disk{Path: path, Kind: kind, ReadOnly: readOnly, workPath: path, mediaID: 1}
	codec, err := sniffCodec(path)
	if err != nil {
		return nil, err
	}
	if codec != "none" {
		if d.workPath, err = expand(path, codec); err != nil {
			return nil, err
		}
		d.scratch = true
		log.WithFields(log.Fields{"image": path, "codec": codec}).Warn("compressed disk image: writes are discarded on exit")
	}
	if cacheSectors > 0 {
		if d.cache, err = lru.New[uint64, []byte](cacheSectors); err != nil {
			d.cleanup()
			return nil, fmt.Errorf("failed to initialize sector cache: %w", err)
		}
	}
	if err := d.open(); err != nil {
		d.cleanup()
		return nil, err
	}
	return d, nil
}

func sniffCodec(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 6)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	codec := compress.Detect(head[:n])
	if codec == "none" && compress.FromExt(path) == "lzma" {
		codec = "lzma"
	}
	return codec, nil
}

func expand(path, codec string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	rc, err := compress.NewReaderFor(codec, src)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	dst, err := os.CreateTemp("", "legacyboot-"+filepath.Base(path)+"-*.img")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("cannot expand %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (d *Disk) open() error {
	store, err := befile.OpenFromPath(d.workPath, d.ReadOnly)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", d.Path, err)
	}
	fi, err := store.Stat()
	if err != nil {
		store.Close()
		return err
	}
	if fi.Size()%sectorSize != 0 {
		log.WithField("image", d.Path).Warnf("image size %d is not a multiple of %d", fi.Size(), sectorSize)
	}
	d.store = store
	d.sectors = uint64(fi.Size()) / sectorSize
	d.writer = nil
	if !d.ReadOnly {
		if d.writer, err = store.Writable(); err != nil {
			store.Close()
			d.store = nil
			return err
		}
	}
	return nil
}

// Close releases the image file. The disk can be reopened with Reopen.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Disk) closeLocked() error {
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store, d.writer = nil, nil
	return err
}

// Reopen opens the image file again after Close.
func (d *Disk) Reopen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store != nil {
		return nil
	}
	return d.open()
}

// Release closes the disk for good and removes its scratch file.
func (d *Disk) Release() error {
	err := d.Close()
	d.cleanup()
	return err
}

func (d *Disk) cleanup() {
	if d.scratch {
		os.Remove(d.workPath)
	}
}

// Scratch reports whether d works on a decompressed copy whose writes are
// lost on Release.
func (d *Disk) Scratch() bool { return d.scratch }

// Reader returns a seekable view of the whole medium.
func (d *Disk) Reader() io.ReadSeeker { return newBlockReader(d, d.Sectors()) }

func (d *Disk) MediaID() uint32   { return d.mediaID }
func (d *Disk) BlockSize() uint32 { return sectorSize }

// Sectors returns the size of the medium in sectors.
func (d *Disk) Sectors() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sectors
}

func (d *Disk) check(mediaID uint32, lba uint64, buf []byte) error {
	switch {
	case d.store == nil:
		return firmware.NotReady
	case mediaID != d.mediaID:
		return firmware.NotReady
	case len(buf)%sectorSize != 0:
		return firmware.BadBufferSize
	case lba+uint64(len(buf)/sectorSize) > d.sectors:
		return firmware.InvalidParameter
	}
	return nil
}

func (d *Disk) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(mediaID, lba, buf); err != nil {
		return err
	}
	for i := 0; i < len(buf)/sectorSize; i++ {
		sec := buf[i*sectorSize : (i+1)*sectorSize]
		if d.cache != nil {
			if cached, ok := d.cache.Get(lba + uint64(i)); ok {
				copy(sec, cached)
				continue
			}
		}
		if _, err := d.store.ReadAt(sec, int64(lba+uint64(i))*sectorSize); err != nil {
			log.WithError(err).WithField("lba", lba+uint64(i)).Debug("sector read failed")
			return firmware.DeviceError
		}
		if d.cache != nil {
			d.cache.Add(lba+uint64(i), append([]byte(nil), sec...))
		}
	}
	return nil
}

func (d *Disk) WriteBlocks(mediaID uint32, lba uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(mediaID, lba, buf); err != nil {
		return err
	}
	if d.writer == nil {
		return firmware.WriteProtected
	}
	if _, err := d.writer.WriteAt(buf, int64(lba)*sectorSize); err != nil {
		log.WithError(err).WithField("lba", lba).Debug("sector write failed")
		return firmware.DeviceError
	}
	if d.cache != nil {
		for i := 0; i < len(buf)/sectorSize; i++ {
			d.cache.Add(lba+uint64(i), append([]byte(nil), buf[i*sectorSize:(i+1)*sectorSize]...))
		}
	}
	return nil
}

// partView exposes a sector range of a disk as its own block device.
type partView struct {
	disk    firmware.BlockIO
	start   uint64
	sectors uint64
}

func (p *partView) MediaID() uint32   { return p.disk.MediaID() }
func (p *partView) BlockSize() uint32 { return p.disk.BlockSize() }

func (p *partView) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if lba+uint64(len(buf))/uint64(p.BlockSize()) > p.sectors {
		return firmware.InvalidParameter
	}
	return p.disk.ReadBlocks(mediaID, p.start+lba, buf)
}

func (p *partView) WriteBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if lba+uint64(len(buf))/uint64(p.BlockSize()) > p.sectors {
		return firmware.InvalidParameter
	}
	return p.disk.WriteBlocks(mediaID, p.start+lba, buf)
}

// blockReader adapts a block device to io.ReadSeeker for the partition
// table parser.
type blockReader struct {
	dev  firmware.BlockIO
	size int64
	off  int64
}

func newBlockReader(dev firmware.BlockIO, sectors uint64) *blockReader {
	return &blockReader{dev: dev, size: int64(sectors) * int64(dev.BlockSize())}
}

func (r *blockReader) Read(p []byte) (int, error) {
	if r.off >= r.size {
		return 0, io.EOF
	}
	bs := int64(r.dev.BlockSize())
	first := r.off / bs
	last := (min(r.off+int64(len(p)), r.size) + bs - 1) / bs
	buf := make([]byte, (last-first)*bs)
	if err := r.dev.ReadBlocks(r.dev.MediaID(), uint64(first), buf); err != nil {
		return 0, err
	}
	n := copy(p, buf[r.off-first*bs:])
	if rest := r.size - r.off; int64(n) > rest {
		n = int(rest)
	}
	r.off += int64(n)
	return n, nil
}

func (r *blockReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.off
	case io.SeekEnd:
		offset += r.size
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative offset %d", offset)
	}
	r.off = offset
	return offset, nil
}
