package newfs

import "strings"

// findChildStrict scans a directory inode's child list for an exact
// (length + content) name match. Spec.md §9 OPEN QUESTION: the C source
// this was distilled from compares using a length equal to the query
// string, so a child named "abc" would match a lookup for "ab". That is
// treated as a latent bug here and replaced with strict equality.
func findChildStrict(dir *Inode, name string) *Dentry {
	for cur := dir.Children; cur != nil; cur = cur.Next {
		if cur.Name == name {
			return cur
		}
	}
	return nil
}

// materialize loads d's inode from disk if it hasn't been already.
func (sb *Superblock) materialize(d *Dentry) error {
	if d.Inode != nil {
		return nil
	}
	inode, err := sb.readInode(d, d.Ino)
	if err != nil {
		return err
	}
	d.Inode = inode
	return nil
}

// Lookup resolves path against the mounted tree, returning the dentry it
// got to, whether the full path was found, and whether that dentry is the
// root. It never mutates the tree. Mirrors newfs_lookup (spec.md §4.6),
// with the strict-equality fix noted above.
func (sb *Superblock) Lookup(path string) (*Dentry, bool, bool, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return sb.root, true, true, nil
	}

	comps := strings.Split(trimmed, "/")
	cur := sb.root

	for lvl := 0; lvl < len(comps); lvl++ {
		if err := sb.materialize(cur); err != nil {
			return cur, false, false, err
		}

		if cur.Inode.Type == TypeReg {
			// there are more components to resolve but cur can't hold
			// children
			return cur, false, false, nil
		}

		child := findChildStrict(cur.Inode, comps[lvl])
		if child == nil {
			return cur, false, false, nil
		}

		if lvl == len(comps)-1 {
			if err := sb.materialize(child); err != nil {
				return child, false, false, err
			}
			return child, true, false, nil
		}

		cur = child
	}

	return cur, false, false, nil
}
