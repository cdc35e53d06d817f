// Package duplicates finds repositories that look like copies of one another.
//
// Name and description groups adjust risk scores. Content groups come from
// hashing one sampled root file per repository inside the ranked top-N window
// and are reported without changing scores.
package duplicates
