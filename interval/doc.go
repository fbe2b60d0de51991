/*Package interval implements interval-union membership queries for sets of
  genomic coordinates represented by BED files or region strings.
  (Note the 'union'.  Overlapping and touching intervals are merged, not
  tracked separately.)
  It assumes every position fits in a PosType.
*/
package interval
