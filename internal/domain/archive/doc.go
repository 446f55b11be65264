/*
Package archive persists the property dictionaries of managed objects.

# Stores

FileStore writes one file per object and walks its root with fastwalk to
list archives. SQLiteStore keeps rows in a single table and verifies a
BLAKE2b-256 checksum on every load. Both implement Store.

# Encoding

A Codec turns a dictionary into bytes: JSON (sonic), YAML (goccy),
TOML (go-toml) or CBOR (fxamacker). Payloads may be zstd-compressed;
compression is sniffed from the bytes on load, so changing the setting
never strands existing archives.

# Archiver

Archiver saves an object when tracking starts and after every property
change, and restores objects through ReadFromDict. Attach binds it to a
managed.Context so objects are tracked exactly while they are registered:

	archiver := archive.NewArchiver(store)
	sub := archiver.Attach(objects, id)
	defer sub.Close()
*/
package archive
