/*Package strandbias computes the allele-specific strand odds ratio (AS_SOR)
  strand-bias annotation.

  Each alternate allele at a site is compared against the reference allele
  with a 2x2 contingency table:

            fwd   rev
      ref    a     b
      alt    c     d

  The statistic is ln(S * refRatio / altRatio), where S = R + 1/R for the
  odds ratio R = (a*d)/(b*c), and refRatio/altRatio are the min/max strand
  ratios of the two rows.  The refRatio/altRatio factor keeps sites where
  the ref and alt reads are skewed in the same direction (e.g. at the edge of
  a targeted region) from looking strand-biased.

  Everything in this package is pure; callers may evaluate sites in parallel
  without synchronization.
*/
package strandbias
