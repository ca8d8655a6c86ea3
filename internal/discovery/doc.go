// Package discovery finds identification and exploration modules on disk.
//
// A module is an out-of-process program that speaks the orchestrator's file
// based protocol. Modules live as plain files in a directory:
//
//	imodules/
//	  forsyde-io-identifier        (native executable)
//	  scala-rules.jar              (JVM archive, run through `java -jar`)
//	  linked -> /opt/idesyde/tool  (symlinks are resolved)
//
// Scan classifies every regular file it finds (after resolving symlinks) as a
// NativeBinary or a JvmArchive and ignores everything else. Entries are keyed by
// their resolved path, so two links pointing at the same file yield one module.
//
// A missing or unreadable directory produces an empty Registry, never an error:
// an installation without exploration modules is still able to identify.
package discovery
